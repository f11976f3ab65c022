package dto

import (
	"time"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/repository"
)

type EmailsResponse struct {
	OK     bool                 `json:"ok"`
	Emails []*emaildomain.Email `json:"emails"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Total  int64                `json:"total"`
}

type ListEmailsRequest struct {
	Status     string `form:"status"`
	Priority   string `form:"priority"`
	Sentiment  string `form:"sentiment"`
	IsFiltered *bool  `form:"isFiltered"`
	Query      string `form:"q"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

type CreateEmailRequest struct {
	MessageID  string     `json:"messageId"`
	From       string     `json:"from" binding:"required"`
	To         []string   `json:"to"`
	Subject    string     `json:"subject"`
	BodyText   string     `json:"bodyText"`
	ReceivedAt *time.Time `json:"receivedAt"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Force  bool   `json:"force"`
}

type SendReplyRequest struct {
	Force bool   `json:"force"`
	From  string `json:"from"`
}

type SendPendingRequest struct {
	Limit       int  `json:"limit"`
	Force       bool `json:"force"`
	Concurrency int  `json:"concurrency"`
}

type ProcessPendingRequest struct {
	Limit int `json:"limit"`
}

type AutoSendSettings struct {
	AutoSendUrgent bool `json:"autoSendUrgent"`
}

type StatsSummary struct {
	Total       int64                   `json:"total"`
	ByStatus    []repository.GroupCount `json:"byStatus"`
	ByPriority  []repository.GroupCount `json:"byPriority"`
	BySentiment []repository.GroupCount `json:"bySentiment"`
	Total24     int64                   `json:"total24"`
	Pending     int64                   `json:"pending"`
	Resolved    int64                   `json:"resolved"`
}

type Last24hStats struct {
	Total24 int64                    `json:"total24"`
	Series  []repository.HourlyCount `json:"series"`
}

type ProcessEmailRequest struct {
	AutoSendUrgent *bool `json:"autoSendUrgent"`
}
