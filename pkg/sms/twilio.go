package sms

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
	voiceFrom  string
}

func NewTwilioProvider(accountSID, authToken, fromNumber, voiceFrom string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	if voiceFrom == "" {
		voiceFrom = fromNumber
	}

	return &TwilioProvider{
		client:     client,
		fromNumber: fromNumber,
		voiceFrom:  voiceFrom,
	}
}

func (t *TwilioProvider) Name() string {
	return "twilio"
}

func (t *TwilioProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	params := &api.CreateMessageParams{}
	params.SetTo(request.To)
	params.SetFrom(pick(request.From, t.fromNumber))
	params.SetBody(request.Message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return &SMSResponse{
			To:     request.To,
			Status: StatusFailed,
			Error:  err.Error(),
		}, fmt.Errorf("twilio sms to %s failed: %w", request.To, err)
	}

	response := &SMSResponse{To: request.To, Status: StatusSent}
	if resp.Sid != nil {
		response.MessageID = *resp.Sid
	}
	if resp.Status != nil {
		response.Status = string(*resp.Status)
	}
	return response, nil
}

func (t *TwilioProvider) SendBulkSMS(ctx context.Context, requests []*SMSRequest) ([]*SMSResponse, error) {
	return sendEach(ctx, t, requests), nil
}

func (t *TwilioProvider) PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error) {
	twiml, err := sayTwiML(request.Message)
	if err != nil {
		return nil, err
	}

	params := &api.CreateCallParams{}
	params.SetTo(request.To)
	params.SetFrom(pick(request.From, t.voiceFrom))
	params.SetTwiml(twiml)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("twilio call to %s failed: %w", request.To, err)
	}

	response := &CallResponse{Status: "queued"}
	if resp.Sid != nil {
		response.CallID = *resp.Sid
	}
	if resp.Status != nil {
		response.Status = string(*resp.Status)
	}
	return response, nil
}

type twimlSay struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
}

func sayTwiML(message string) (string, error) {
	if message == "" {
		message = "This is an automated emergency call."
	}
	out, err := xml.Marshal(twimlSay{Say: message})
	if err != nil {
		return "", fmt.Errorf("failed to build twiml: %w", err)
	}
	return string(out), nil
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
