package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

const maxErrorBody = 1 << 20

type detailBody struct {
	Detail string `json:"detail"`
	Msg    string `json:"msg"`
}

// readDetail extracts the human-readable message of an upstream failure body
// and puts the body back so the response can still be forwarded verbatim.
func readDetail(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var parsed detailBody
	if json.Unmarshal(raw, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Msg
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
