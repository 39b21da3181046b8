package models

// UserType is the role a platform account holds.
type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeVendor   UserType = "vendor"
	UserTypeAdmin    UserType = "admin"
)

// UserProfile is the account information fetched from the upstream after
// every successful login. It is cached per session and cleared on logout.
type UserProfile struct {
	ID         int64    `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone,omitempty"`
	UserType   UserType `json:"user_type"`
	CreateTime string   `json:"create_time"`
	Avatar     string   `json:"avatar,omitempty"`
}

func (p UserProfile) Empty() bool {
	return p.ID == 0 && p.Username == ""
}

// StoreSummary is the vendor's store record as reported by the upstream.
type StoreSummary struct {
	ID        int64  `json:"id"`
	StoreName string `json:"storeName"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	State     string `json:"state"`
	OwnerID   int64  `json:"owner_id"`
}

// VendorStoreStatus describes whether a vendor account has a registered
// store and whether that store may already be managed. An upstream 403 on
// the status endpoint is mapped to "not existing" rather than an error.
type VendorStoreStatus struct {
	Exists    bool          `json:"exists"`
	State     string        `json:"state,omitempty"`
	CanManage bool          `json:"can_manage"`
	Store     *StoreSummary `json:"store,omitempty"`
}
