// Package notification delivers in-app notifications. Rows in Postgres are
// the source of truth; the Redis badge and the broker fan-out are best effort.
package notification

import "time"

type Type string

const (
	TypeBookingPendingApproval Type = "BOOKING_PENDING_APPROVAL"
	TypeBookingApproved        Type = "BOOKING_APPROVED"
	TypeBookingRejected        Type = "BOOKING_REJECTED"
	TypeBookingCancelled       Type = "BOOKING_CANCELLED"
	TypeItemLoanRequest        Type = "ITEM_LOAN_REQUEST"
	TypeItemReturned           Type = "ITEM_RETURNED"
	TypeItemOverdue            Type = "ITEM_OVERDUE"
	TypeReturnItemReminder     Type = "RETURN_ITEM_REMINDER"
	TypeRehearsalReminder      Type = "REHEARSAL_REMINDER"
	TypePaymentReminder        Type = "PAYMENT_REMINDER"
	TypeMemberAdded            Type = "MEMBER_ADDED"
	TypeMemberRemoved          Type = "MEMBER_REMOVED"
	TypeVenueInvitation        Type = "VENUE_INVITATION"
	TypeInvitationAnswered     Type = "INVITATION_ANSWERED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ActionURL string     `json:"actionUrl,omitempty"`
	Priority  Priority   `json:"priority"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
