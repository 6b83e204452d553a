package sms

import "context"

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
	SendBulkSMS(ctx context.Context, requests []*SMSRequest) ([]*SMSResponse, error)
	Name() string
}

// Dialer places an outbound voice call on the user's behalf.
type Dialer interface {
	PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error)
}

type SMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
	Type    string `json:"type"` // transactional, emergency
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type CallRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type CallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

const (
	SMSTypeTransactional = "transactional"
	SMSTypeEmergency     = "emergency"

	StatusFailed = "failed"
	StatusSent   = "sent"
)

func sendEach(ctx context.Context, provider SMSProvider, requests []*SMSRequest) []*SMSResponse {
	responses := make([]*SMSResponse, len(requests))

	for i, req := range requests {
		resp, err := provider.SendSMS(ctx, req)
		if err != nil {
			resp = &SMSResponse{
				To:     req.To,
				Status: StatusFailed,
				Error:  err.Error(),
			}
		}
		responses[i] = resp
	}

	return responses
}
