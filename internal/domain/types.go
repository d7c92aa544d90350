/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

const (
    StateOpened = "opened"
    StateClosed = "closed"
)

type User struct {
    ID        int64  `json:"id"`
    Username  string `json:"username"`
    Name      string `json:"name"`
    AvatarURL string `json:"avatar_url,omitempty"`
}

type Iteration struct {
    ID        int64      `json:"id"`
    Name      string     `json:"name"`
    StartDate *time.Time `json:"start_date,omitempty"`
    DueDate   *time.Time `json:"due_date,omitempty"`
}

type EpicRef struct {
    ID    int64  `json:"id"`
    Title string `json:"title,omitempty"`
}

type Note struct {
    Body string `json:"body"`
}

type Issue struct {
    IID            int        `json:"iid"`
    Title          string     `json:"title"`
    State          string     `json:"state"`
    Weight         *int       `json:"weight,omitempty"`
    Labels         []string   `json:"labels,omitempty"`
    Assignee       *User      `json:"assignee,omitempty"`
    Iteration      *Iteration `json:"iteration,omitempty"`
    Epic           *EpicRef   `json:"epic,omitempty"`
    MilestoneTitle string     `json:"milestone,omitempty"`
    CreatedAt      time.Time  `json:"created_at"`
    ClosedAt       *time.Time `json:"closed_at,omitempty"`
    DueDate        *time.Time `json:"due_date,omitempty"`
    Description    string     `json:"description,omitempty"`
    BlockingIssues []int      `json:"blocking_issues,omitempty"`
    Notes          []Note     `json:"notes,omitempty"`
}

func (i Issue) Closed() bool { return i.State == StateClosed }

func (i Issue) Points() int {
    if i.Weight == nil { return 0 }
    return *i.Weight
}

func (i Issue) HasLabel(label string) bool {
    for _, l := range i.Labels {
        if l == label { return true }
    }
    return false
}

type Epic struct {
    ID          int64      `json:"id"`
    Title       string     `json:"title"`
    State       string     `json:"state"`
    DueDate     *time.Time `json:"due_date,omitempty"`
    Description string     `json:"description,omitempty"`
    Labels      []string   `json:"labels,omitempty"`
    IssueIIDs   []int      `json:"issue_iids,omitempty"`
}

type Milestone struct {
    ID        int64      `json:"id"`
    Title     string     `json:"title"`
    StartDate *time.Time `json:"start_date,omitempty"`
    DueDate   *time.Time `json:"due_date,omitempty"`
    State     string     `json:"state"`
}

type TeamMember struct {
    Username    string `json:"username"`
    UserID      int64  `json:"userId"`
    Name        string `json:"name"`
    AvatarURL   string `json:"avatarUrl,omitempty"`
    Role        string `json:"role"`
    WeeklyHours int    `json:"weeklyCapacityHours"`
    EmployeeID  string `json:"employeeId,omitempty"`
}

const (
    RoleEngineer          = "Engineer"
    RoleProductOwner      = "Product Owner"
    RoleInitiativeManager = "Initiative Manager"
)

type Absence struct {
    Username  string    `json:"username"`
    StartDate time.Time `json:"startDate"`
    EndDate   time.Time `json:"endDate"`
    Reason    string    `json:"reason,omitempty"`
}

type Risk struct {
    ID          string   `json:"id"`
    Title       string   `json:"title"`
    Description string   `json:"description,omitempty"`
    Probability int      `json:"probability"`
    Impact      int      `json:"impact"`
    Status      string   `json:"status"`
    Owner       string   `json:"owner,omitempty"`
    Mitigations []string `json:"mitigations,omitempty"`
}

// Score is probability x impact, in [1,9] for valid risks.
func (r Risk) Score() int { return r.Probability * r.Impact }

const (
    RiskOpen       = "open"
    RiskMonitoring = "monitoring"
    RiskClosed     = "closed"
)

const (
    CommEmail        = "email"
    CommDecision     = "decision"
    CommMeetingNotes = "meeting_notes"
    CommIncident     = "incident"
    CommScopeChange  = "scope_change"
)

// CommunicationEntry is a tagged union discriminated on Type. Only the
// field group matching the discriminator is populated.
type CommunicationEntry struct {
    ID             string     `json:"id"`
    Type           string     `json:"type"`
    SentAt         time.Time  `json:"sentAt"`
    CreatedAt      *time.Time `json:"createdAt,omitempty"`
    Priority       string     `json:"priority"`
    StakeholderIDs []string   `json:"stakeholderIds,omitempty"`
    LinkedIssues   []int      `json:"linkedIssues,omitempty"`
    LinkedEpics    []int64    `json:"linkedEpics,omitempty"`
    Tags           []string   `json:"tags,omitempty"`

    Email    *EmailFields    `json:"email,omitempty"`
    Decision *DecisionFields `json:"decision,omitempty"`
    Meeting  *MeetingFields  `json:"meeting,omitempty"`
    Incident *IncidentFields `json:"incident,omitempty"`
}

type EmailFields struct {
    From    string   `json:"from"`
    To      []string `json:"to"`
    CC      []string `json:"cc,omitempty"`
    Subject string   `json:"subject"`
    Content string   `json:"content,omitempty"`
}

type DecisionFields struct {
    Title           string     `json:"title"`
    Description     string     `json:"description,omitempty"`
    DecisionDate    *time.Time `json:"decisionDate,omitempty"`
    ApprovedBy      []string   `json:"approvedBy,omitempty"`
    DocumentURL     string     `json:"documentUrl,omitempty"`
    DocumentVersion string     `json:"documentVersion,omitempty"`
}

type MeetingFields struct {
    Title       string   `json:"title"`
    Attendees   []string `json:"attendees,omitempty"`
    Content     string   `json:"content,omitempty"`
    ActionItems []string `json:"actionItems,omitempty"`
}

type IncidentFields struct {
    Title          string     `json:"title"`
    Description    string     `json:"description,omitempty"`
    Severity       string     `json:"severity,omitempty"`
    TicketNumber   string     `json:"ticketNumber,omitempty"`
    TicketLink     string     `json:"ticketLink,omitempty"`
    Resolution     string     `json:"resolution,omitempty"`
    ResolutionDate *time.Time `json:"resolutionDate,omitempty"`
}

// EffectiveAt is the timestamp used for timeline grouping. sentAt is
// authoritative; createdAt is only a fallback for legacy entries.
func (c CommunicationEntry) EffectiveAt() time.Time {
    if !c.SentAt.IsZero() { return c.SentAt }
    if c.CreatedAt != nil { return *c.CreatedAt }
    return time.Time{}
}

const (
    VelocityModeStatic  = "static"
    VelocityModeDynamic = "dynamic"

    MetricIssues = "issues"
    MetricPoints = "points"
)

type VelocityConfig struct {
    Mode                string  `json:"mode"`
    MetricType          string  `json:"metricType"`
    StaticHoursPerPoint float64 `json:"staticHoursPerPoint"`
    StaticHoursPerIssue float64 `json:"staticHoursPerIssue"`
    LookbackIterations  int     `json:"velocityLookbackIterations"`
}

type ProjectConfig struct {
    BaseURL      string `json:"baseUrl"`
    ProjectID    int64  `json:"projectId"`
    GroupPath    string `json:"groupPath"`
    AccessToken  string `json:"accessToken"`
    FilterToYear bool   `json:"filterToYear"`
}

type UserPreferences struct {
    Role       string `json:"role"`
    Navigation string `json:"navigation"`
}

// Snapshot is the immutable input of one analytics run: the tracker corpus
// plus the locally persisted planning state, assembled at fetch time.
type Snapshot struct {
    Issues         []Issue              `json:"issues"`
    Epics          []Epic               `json:"epics"`
    Milestones     []Milestone          `json:"milestones"`
    Team           []TeamMember         `json:"team"`
    Absences       []Absence            `json:"absences"`
    Risks          []Risk               `json:"risks"`
    Communications []CommunicationEntry `json:"communications"`
    Velocity       VelocityConfig       `json:"velocityConfig"`
    FetchedAt      time.Time            `json:"fetchedAt"`
}
