package models

import (
	"strings"
	"time"
)

// UserRole is the mutually exclusive role of an account.
type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleArtist UserRole = "artist"
	RoleAdmin  UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleArtist, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// Permission names checked by HasPermission.
const (
	PermCreatePosts        = "create_posts"
	PermManageAppointments = "manage_appointments"
	PermViewAnalytics      = "view_analytics"
	PermBookAppointments   = "book_appointments"
	PermLikePosts          = "like_posts"
	PermAdminister         = "administer"
)

var rolePermissions = map[UserRole][]string{
	RoleArtist: {PermCreatePosts, PermManageAppointments, PermViewAnalytics},
	RoleUser:   {PermCreatePosts, PermBookAppointments, PermLikePosts},
}

// User represents an account on the platform. Follower and following counts
// are derived from the follows table and never stored here.
type User struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Username             string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email                string     `gorm:"uniqueIndex;not null" json:"email"`
	Password             string     `gorm:"not null" json:"-"`
	FirstName            string     `gorm:"size:50" json:"first_name"`
	LastName             string     `gorm:"size:50" json:"last_name"`
	Bio                  string     `gorm:"size:500" json:"bio"`
	Avatar               string     `json:"avatar"`
	Phone                string     `gorm:"size:20" json:"phone,omitempty"`
	Role                 UserRole   `gorm:"size:10;not null;default:user;index" json:"role"`
	Status               UserStatus `gorm:"size:10;not null;default:active;index" json:"status"`
	EmailVerified        bool       `gorm:"not null;default:false" json:"email_verified"`
	PhoneVerified        bool       `gorm:"not null;default:false" json:"phone_verified"`
	IsPremium            bool       `gorm:"not null;default:false" json:"is_premium"`
	PremiumExpiresAt     *time.Time `json:"premium_expires_at,omitempty"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	NotificationsEnabled bool       `gorm:"not null" json:"notifications_enabled"`
	Interests            []string   `gorm:"type:text;serializer:json" json:"interests"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsArtist() bool { return u.Role == RoleArtist }
func (u *User) IsAdmin() bool  { return u.Role == RoleAdmin }
func (u *User) IsActive() bool { return u.Status == UserStatusActive }

// IsPremiumActive is true when the premium flag is set and either no expiry
// is recorded or the expiry is still ahead of now.
func (u *User) IsPremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	return u.PremiumExpiresAt == nil || u.PremiumExpiresAt.After(now)
}

func (u *User) CanCreatePosts() bool {
	return u.IsActive() && (u.IsArtist() || u.Role == RoleUser || u.IsAdmin())
}

// CanBookAppointments is limited to active client accounts.
func (u *User) CanBookAppointments() bool {
	return u.IsActive() && u.Role == RoleUser && u.HasPermission(PermBookAppointments)
}

// HasPermission checks the role permission table; admins hold every permission.
func (u *User) HasPermission(permission string) bool {
	if u.IsAdmin() {
		return true
	}
	for _, p := range rolePermissions[u.Role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ShouldReceiveNotification honors the user's preference and account state.
func (u *User) ShouldReceiveNotification() bool {
	return u.IsActive() && u.NotificationsEnabled
}

// ProfileCompleteness summarizes which profile fields are filled in.
type ProfileCompleteness struct {
	IsComplete    bool     `json:"is_complete"`
	Percentage    int      `json:"percentage"`
	MissingFields []string `json:"missing_fields"`
	Suggestions   []string `json:"suggestions"`
}

// ProfileCompleteness checks required and optional profile fields.
func (u *User) ProfileCompleteness() ProfileCompleteness {
	required := []struct {
		name  string
		value string
	}{
		{"email", u.Email},
		{"username", u.Username},
		{"first_name", u.FirstName},
		{"last_name", u.LastName},
	}
	optional := []struct {
		name       string
		value      string
		suggestion string
	}{
		{"avatar", u.Avatar, "Add a profile picture"},
		{"bio", u.Bio, "Write a short bio"},
		{"phone", u.Phone, "Add a phone number"},
	}

	out := ProfileCompleteness{MissingFields: []string{}, Suggestions: []string{}}
	filled := 0
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			out.MissingFields = append(out.MissingFields, f.name)
			continue
		}
		filled++
	}
	for _, f := range optional {
		if strings.TrimSpace(f.value) == "" {
			out.Suggestions = append(out.Suggestions, f.suggestion)
			continue
		}
		filled++
	}

	out.IsComplete = len(out.MissingFields) == 0
	out.Percentage = filled * 100 / (len(required) + len(optional))
	return out
}

// UserProfile is the public view of a user with derived counters.
type UserProfile struct {
	User
	FollowersCount int64               `json:"followers_count"`
	FollowingCount int64               `json:"following_count"`
	PostsCount     int64               `json:"posts_count"`
	IsFollowing    bool                `json:"is_following"`
	Completeness   ProfileCompleteness `json:"completeness"`
}
