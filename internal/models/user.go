package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// VerificationStatus tracks the membership review lifecycle.
type VerificationStatus string

const (
	VerificationNotSubmitted VerificationStatus = "not_submitted"
	VerificationPending      VerificationStatus = "pending"
	VerificationApproved     VerificationStatus = "approved"
	VerificationRejected     VerificationStatus = "rejected"
)

// Gender values accepted for jenisKelamin.
const (
	GenderMale   = "Laki-laki"
	GenderFemale = "Perempuan"
)

// AuthProvider records how the account authenticates.
const (
	AuthProviderPassword = "password"
	AuthProviderFirebase = "firebase"
)

// User is a member or admin document stored in the users table.
type User struct {
	ID           string   `db:"id" json:"id"`
	Email        string   `db:"email" json:"email"`
	PasswordHash *string  `db:"password_hash" json:"-"`
	AuthProvider string   `db:"auth_provider" json:"authProvider"`
	Name         string   `db:"name" json:"name"`
	Role         UserRole `db:"role" json:"role"`

	FullName             string `db:"full_name" json:"fullName"`
	NIM                  string `db:"nim" json:"nim"`
	Prodi                string `db:"prodi" json:"prodi"`
	PhoneNumber          string `db:"phone_number" json:"phoneNumber"`
	JenisKelamin         string `db:"jenis_kelamin" json:"jenisKelamin"`
	IsIbafMember         bool   `db:"is_ibaf_member" json:"isIbafMember"`
	IbafMembershipNumber string `db:"ibaf_membership_number" json:"ibafMembershipNumber,omitempty"`

	VerificationStatus      VerificationStatus `db:"verification_status" json:"verificationStatus"`
	VerificationRequestedAt *time.Time         `db:"verification_requested_at" json:"verificationRequestedAt,omitempty"`
	RejectionReason         string             `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ApprovedAt              *time.Time         `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovedBy              *string            `db:"approved_by" json:"approvedBy,omitempty"`
	RejectedAt              *time.Time         `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectedBy              *string            `db:"rejected_by" json:"rejectedBy,omitempty"`

	IsActive   bool       `db:"is_active" json:"isActive"`
	IsBanned   bool       `db:"is_banned" json:"isBanned"`
	BannedAt   *time.Time `db:"banned_at" json:"bannedAt,omitempty"`
	BannedBy   *string    `db:"banned_by" json:"bannedBy,omitempty"`
	UnbannedAt *time.Time `db:"unbanned_at" json:"unbannedAt,omitempty"`
	UnbannedBy *string    `db:"unbanned_by" json:"unbannedBy,omitempty"`

	LastLogin *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName returns the best available name for message headers.
func (u *User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

// UserStatusTab is one of the admin user list filters.
type UserStatusTab string

const (
	UserTabAll          UserStatusTab = "all"
	UserTabApproved     UserStatusTab = "approved"
	UserTabPending      UserStatusTab = "pending"
	UserTabRejected     UserStatusTab = "rejected"
	UserTabNotSubmitted UserStatusTab = "not_submitted"
)

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Tab       UserStatusTab
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// AdminStats summarises the admin dashboard counters.
type AdminStats struct {
	TotalUsers           int `json:"totalUsers"`
	ActiveUsers          int `json:"activeUsers"`
	PendingVerifications int `json:"pendingVerifications"`
	TotalMessages        int `json:"totalMessages"`
	PendingMessages      int `json:"pendingMessages"`
}

// UserStatusCounts holds the per-tab counts shown on the admin user list.
type UserStatusCounts struct {
	All          int `db:"all_count" json:"all"`
	Approved     int `db:"approved" json:"approved"`
	Pending      int `db:"pending" json:"pending"`
	Rejected     int `db:"rejected" json:"rejected"`
	NotSubmitted int `db:"not_submitted" json:"notSubmitted"`
}
