// Package campus defines the profile and activity records exchanged between
// the campusconnect app and its matching service.
package campus

import (
	"strings"
	"time"
)

// Category tags an activity.
type Category string

// Known activity categories.
const (
	CategorySports   Category = "Sports"
	CategoryStudy    Category = "Study"
	CategorySocial   Category = "Social"
	CategoryProjects Category = "Projects"
	CategoryGaming   Category = "Gaming"
	CategoryClubs    Category = "Clubs"
	CategoryCultural Category = "Cultural"
	CategoryFitness  Category = "Fitness"
	CategoryOther    Category = "Other"
)

// ActivityStatus is the lifecycle state of an activity.
type ActivityStatus string

const (
	StatusOpen      ActivityStatus = "open"
	StatusFull      ActivityStatus = "full"
	StatusCompleted ActivityStatus = "completed"
	StatusCancelled ActivityStatus = "cancelled"
)

// SocialLinks are optional profile links.
type SocialLinks struct {
	GitHub    string `json:"github,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// User is a student profile. Interests keep their order and may repeat.
type User struct {
	ID                string       `json:"id" validate:"required"`
	Name              string       `json:"name" validate:"required"`
	RollNumber        string       `json:"rollNumber,omitempty"`
	Email             string       `json:"email,omitempty"`
	Avatar            string       `json:"avatar,omitempty"`
	Interests         []string     `json:"interests"`
	Major             string       `json:"major"`
	Age               int          `json:"age,omitempty"`
	ParticipationRate float64      `json:"participationRate"`
	BehaviorScore     float64      `json:"behaviorScore"`
	Bio               string       `json:"bio,omitempty"`
	SocialLinks       *SocialLinks `json:"socialLinks,omitempty"`
}

// FirstName returns the first whitespace-delimited segment of the name.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Activity is a joinable campus event.
type Activity struct {
	ID           string         `json:"id" validate:"required"`
	Title        string         `json:"title"`
	Category     Category       `json:"category"`
	Location     string         `json:"location,omitempty"`
	Time         string         `json:"time,omitempty"`
	SlotsTotal   int            `json:"slotsTotal,omitempty"`
	SlotsTaken   int            `json:"slotsTaken,omitempty"`
	CreatorID    string         `json:"creatorId,omitempty"`
	CreatorName  string         `json:"creatorName,omitempty"`
	Description  string         `json:"description"`
	CreatedAt    *time.Time     `json:"createdAt,omitempty"`
	Participants []string       `json:"participants,omitempty"`
	Status       ActivityStatus `json:"status,omitempty"`
	SkillLevel   string         `json:"skillLevel,omitempty"`
}

// MatchSuggestion pairs a user with an activity. ActivityID is not checked
// against any activity set; callers reconcile it.
type MatchSuggestion struct {
	ActivityID         string  `json:"activityId"`
	Reason             string  `json:"reason"`
	CompatibilityScore float64 `json:"compatibilityScore"`
}
