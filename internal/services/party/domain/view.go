package domain

import (
	"sort"
	"time"
)

// MemberView is the wire representation of one roster entry.
type MemberView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joinedAt"`
}

// UserRefView is the wire representation of a user reference.
type UserRefView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// StateView is the wire representation of the playback clock. Position is
// always the interpolated current value, never the raw stored anchor, and
// ServerTime lets clients correct for transfer latency. The action fields are
// only present on broadcasts triggered by a control action or roster change.
type StateView struct {
	IsPlaying    bool    `json:"isPlaying"`
	Position     float64 `json:"position"`
	PlaybackRate float64 `json:"playbackRate"`
	UpdatedAt    int64   `json:"updatedAt"`
	ServerTime   int64   `json:"serverTime"`
	ActionType   string  `json:"actionType,omitempty"`
	ActionID     string  `json:"actionId,omitempty"`
	SourceUserID string  `json:"sourceUserId,omitempty"`
}

// View is the client-facing party representation delivered over the API and
// the push gateway. Timestamps are epoch milliseconds.
type View struct {
	ID             string       `json:"id"`
	LibraryItemID  string       `json:"libraryItemId"`
	EpisodeID      string       `json:"episodeId,omitempty"`
	LibraryID      string       `json:"libraryId"`
	MediaType      string       `json:"mediaType"`
	DisplayTitle   string       `json:"displayTitle"`
	DisplayAuthor  string       `json:"displayAuthor"`
	CoverPath      string       `json:"coverPath,omitempty"`
	Duration       *float64     `json:"duration"`
	CreatedBy      UserRefView  `json:"createdBy"`
	CreatedAt      int64        `json:"createdAt"`
	UpdatedAt      int64        `json:"updatedAt"`
	Members        []MemberView `json:"members"`
	InvitedUserIDs []string     `json:"invitedUserIds"`
	State          StateView    `json:"state"`
}

// ActionMeta tags a view's state with the action that produced it.
type ActionMeta struct {
	ActionType   string
	ActionID     string
	SourceUserID string
}

// ClientView builds the client-facing representation of the party at the
// given instant. Members are ordered by join time for stable output.
func (p *Party) ClientView(now time.Time, meta ActionMeta) View {
	members := make([]MemberView, 0, len(p.Members))
	for _, member := range p.Members {
		members = append(members, MemberView{
			ID:       member.ID,
			Username: member.Username,
			JoinedAt: member.JoinedAt.UnixMilli(),
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt != members[j].JoinedAt {
			return members[i].JoinedAt < members[j].JoinedAt
		}
		return members[i].ID < members[j].ID
	})

	invited := make([]string, 0, len(p.InvitedUserIDs))
	for userID := range p.InvitedUserIDs {
		invited = append(invited, userID)
	}
	sort.Strings(invited)

	return View{
		ID:             p.ID,
		LibraryItemID:  p.Media.LibraryItemID,
		EpisodeID:      p.Media.EpisodeID,
		LibraryID:      p.Media.LibraryID,
		MediaType:      p.Media.MediaType,
		DisplayTitle:   p.Media.DisplayTitle,
		DisplayAuthor:  p.Media.DisplayAuthor,
		CoverPath:      p.Media.CoverPath,
		Duration:       p.Media.Duration,
		CreatedBy:      UserRefView{ID: p.CreatedBy.ID, Username: p.CreatedBy.Username},
		CreatedAt:      p.CreatedAt.UnixMilli(),
		UpdatedAt:      p.UpdatedAt.UnixMilli(),
		Members:        members,
		InvitedUserIDs: invited,
		State: StateView{
			IsPlaying:    p.IsPlaying,
			Position:     p.CurrentPosition(now),
			PlaybackRate: p.PlaybackRate,
			UpdatedAt:    p.UpdatedAt.UnixMilli(),
			ServerTime:   now.UnixMilli(),
			ActionType:   meta.ActionType,
			ActionID:     meta.ActionID,
			SourceUserID: meta.SourceUserID,
		},
	}
}
