package b2chat

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetChats fetches one page of the chats export. It follows the same shape
// as GetContacts: per-record failures are collected, an absent chats array
// yields an empty page.
func (c *Client) GetChats(ctx context.Context, params PageParams) (*ChatPage, error) {
	body, err := c.doGet(ctx, EndpointChatsExport, params.query("date_range_from", "date_range_to"))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Chats    json.RawMessage `json:"chats"`
		Exported int             `json:"exported"`
		Total    int             `json:"total"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{
			StatusCode: StatusInvalidEnvelope,
			Body:       truncate(body),
			Endpoint:   EndpointChatsExport,
			Err:        fmt.Errorf("decode export envelope: %w", err),
		}
	}

	var rawRecords []json.RawMessage
	if len(envelope.Chats) == 0 || json.Unmarshal(envelope.Chats, &rawRecords) != nil {
		c.logger.Warn().
			Str("endpoint", EndpointChatsExport).
			Int("total", envelope.Total).
			Msg("Export response missing chats array - returning empty page")
		return &ChatPage{
			Pagination: Pagination{Total: envelope.Total},
		}, nil
	}

	chats := make([]Chat, 0, len(rawRecords))
	var recordErrors []RecordError

	for i, raw := range rawRecords {
		chat, err := c.parseChat(raw)
		if err != nil {
			recordErrors = append(recordErrors, RecordError{Index: i, Err: err})
			apiRecordFailuresTotal.WithLabelValues(EndpointChatsExport).Inc()
			continue
		}
		chats = append(chats, chat)
	}

	if len(recordErrors) > 0 {
		c.logger.Warn().
			Str("endpoint", EndpointChatsExport).
			Int("parse_failures", len(recordErrors)).
			Int("parsed", len(chats)).
			Str("first_failure", recordErrors[0].Error()).
			Msg("Some chat records failed validation")
	}

	return &ChatPage{
		Chats:  chats,
		Errors: recordErrors,
		Pagination: Pagination{
			Total:       envelope.Total,
			Exported:    envelope.Exported,
			HasNextPage: envelope.Exported >= params.limit(),
		},
	}, nil
}

func (c *Client) parseChat(raw json.RawMessage) (Chat, error) {
	remapped, err := remapFields(raw, chatFieldAliases)
	if err != nil {
		return Chat{}, err
	}

	var chat Chat
	if err := json.Unmarshal(remapped, &chat); err != nil {
		return Chat{}, fmt.Errorf("decode chat: %w", err)
	}
	if err := c.validate.Struct(chat); err != nil {
		return Chat{}, fmt.Errorf("validate chat: %w", err)
	}

	chat.Raw = raw
	return chat, nil
}
