// Package domain defines the persistence models for profiles, companies,
// training sessions, analysis results, subscriptions, and audit records.
// These types are mapped with GORM and form the core data layer of the
// sales-coach application.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Profile roles. Self-service registration always produces RoleDemo; the
// privileged roles can only be assigned by an admin or super-admin caller.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleDemo       = "demo_user"
)

// Session lifecycle states.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAnalyzed  = "analyzed"
	SessionArchived  = "archived"
)

// Profile is the application-level user identity record, distinct from the
// auth provider's user record. It is resolved by AuthID, the subject issued
// by the auth provider.
//
// The demo counters are monotonically non-decreasing and are only ever
// mutated through the repo's atomic increment statements; reading a counter
// and writing it back from application code would lose updates under
// concurrent session starts.
type Profile struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	AuthID           string         `json:"auth_id"            gorm:"type:varchar(64);not null;uniqueIndex:ux_profiles_auth_id"`
	CompanyID        *string        `json:"company_id,omitempty" gorm:"type:char(36);index"`
	Email            string         `json:"email"              gorm:"type:varchar(255);not null"`
	FirstName        string         `json:"first_name"         gorm:"type:varchar(100);not null"`
	LastName         string         `json:"last_name"          gorm:"type:varchar(100)"`
	Position         *string        `json:"position,omitempty" gorm:"type:varchar(100)"`
	Phone            *string        `json:"phone,omitempty"    gorm:"type:varchar(32)"`
	TeamSize         *int           `json:"team_size,omitempty"`
	Role             string         `json:"role"               gorm:"type:varchar(16);not null;default:'demo_user';check:role IN ('user','admin','super_admin','demo_user')"`
	DemoSessionsUsed int            `json:"demo_sessions_used" gorm:"not null;default:0"`
	DemoMinutesUsed  float64        `json:"demo_minutes_used"  gorm:"not null;default:0"`
	Settings         datatypes.JSON `json:"settings,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// IsAdmin reports whether the profile carries an administrative role.
func (p *Profile) IsAdmin() bool {
	return p != nil && (p.Role == RoleAdmin || p.Role == RoleSuperAdmin)
}

// IsDemo reports whether the profile is on the free demo tier.
func (p *Profile) IsDemo() bool { return p != nil && p.Role == RoleDemo }

// Company groups profiles under one organization. Companies are created
// lazily the first time a new name is seen during profile creation; the
// unique index on Name is the dedup guarantee, the lookup-by-name before
// insert is only an optimization.
type Company struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex:ux_companies_name"`
	Domain    *string        `json:"domain,omitempty" gorm:"type:varchar(255)"`
	Settings  datatypes.JSON `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Company.
func (Company) TableName() string { return "companies" }

// Session is one voice-training attempt. ProfileID is nullable: a session
// created retroactively for an analyzed conversation is still attributed to
// a profile, but anonymous demo flows never produce a row at all.
//
// ConversationID is the external id issued by the voice provider and is the
// idempotency key for analysis caching: the unique index makes a second
// analyze request for the same conversation converge on the existing row.
type Session struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	ProfileID        *string        `json:"profile_id,omitempty" gorm:"type:char(36);index"`
	CompanyID        *string        `json:"company_id,omitempty" gorm:"type:char(36);index"`
	ConversationID   *string        `json:"conversation_id,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_sessions_conversation_id"`
	Title            string         `json:"title"             gorm:"type:varchar(255);not null"`
	Status           string         `json:"status"            gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','completed','analyzed','archived')"`
	StartedAt        time.Time      `json:"started_at"`
	EndedAt          *time.Time     `json:"ended_at,omitempty"`
	DurationSeconds  int            `json:"duration_seconds"  gorm:"not null;default:0"`
	Transcript       datatypes.JSON `json:"transcript,omitempty"`
	ProcessingStatus string         `json:"processing_status" gorm:"type:varchar(32);not null;default:'ready'"`
	AnalyticsSummary datatypes.JSON `json:"analytics_summary,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// AnalysisResult is the LLM's scored critique for one session. The unique
// index on SessionID is the conflict target for the cache upsert: presence
// of a row here is the single source of truth for "already analyzed".
type AnalysisResult struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	SessionID       string         `json:"session_id"       gorm:"type:char(36);not null;uniqueIndex:ux_analysis_session_id"`
	AnalysisType    string         `json:"analysis_type"    gorm:"type:varchar(64);not null;default:'sales_conversation'"`
	Provider        string         `json:"provider"         gorm:"type:varchar(32);not null"`
	Version         string         `json:"version"          gorm:"type:varchar(64);not null"`
	Results         datatypes.JSON `json:"results"          gorm:"not null"`
	ConfidenceScore float64        `json:"confidence_score" gorm:"not null;default:0"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	// Session is the analyzed training attempt. One result per session.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AnalysisResult.
func (AnalysisResult) TableName() string { return "analysis_results" }

// Subscription tracks a paid-tier minutes quota. At most one row with
// status=active per profile is consulted when gating session creation.
type Subscription struct {
	ID                 string     `json:"id"            gorm:"type:char(36);primaryKey"`
	ProfileID          string     `json:"profile_id"    gorm:"type:char(36);not null;index"`
	CompanyID          *string    `json:"company_id,omitempty" gorm:"type:char(36)"`
	PlanID             string     `json:"plan_id"       gorm:"type:varchar(64);not null"`
	PlanName           string     `json:"plan_name"     gorm:"type:varchar(64);not null"`
	Status             string     `json:"status"        gorm:"type:varchar(16);not null;check:status IN ('active','trialing','past_due','canceled','incomplete')"`
	MinutesLimit       int        `json:"minutes_limit" gorm:"not null;default:0"`
	MinutesUsed        int        `json:"minutes_used"  gorm:"not null;default:0"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// APIKey stores a per-profile upstream provider credential. The key material
// is sealed with AES-256-GCM; KeyHash is a SHA-256 digest used for equality
// checks without decrypting.
type APIKey struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	ProfileID    string     `json:"profile_id"    gorm:"type:char(36);not null;index;uniqueIndex:ux_api_keys_profile_service,priority:1"`
	Service      string     `json:"service"       gorm:"type:varchar(64);not null;uniqueIndex:ux_api_keys_profile_service,priority:2"`
	EncryptedKey string     `json:"-"             gorm:"type:text;not null"`
	KeyHash      string     `json:"-"             gorm:"type:char(64);not null"`
	IsActive     bool       `json:"is_active"     gorm:"not null;default:true"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for APIKey.
func (APIKey) TableName() string { return "api_keys" }

// UsageRecord captures minutes consumed by a finalized session; the
// dashboard sums the current month's rows for display.
type UsageRecord struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ProfileID   string    `json:"profile_id"   gorm:"type:char(36);not null;index"`
	SessionID   *string   `json:"session_id,omitempty" gorm:"type:char(36)"`
	MinutesUsed float64   `json:"minutes_used" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for UsageRecord.
func (UsageRecord) TableName() string { return "usage_records" }

// AuditLog records side-effecting operations for traceability. Writes are
// best-effort: a failed audit insert never fails the operation it records.
type AuditLog struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	CompanyID *string        `json:"company_id,omitempty" gorm:"type:char(36)"`
	EventType string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Resource  string         `json:"resource"   gorm:"type:varchar(64);not null"`
	Action    string         `json:"action"     gorm:"type:varchar(32);not null"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName returns the database table name for AuditLog.
func (AuditLog) TableName() string { return "audit_logs" }
