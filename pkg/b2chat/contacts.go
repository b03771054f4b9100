package b2chat

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetContacts fetches one page of the contacts export. Malformed records are
// collected in the page's Errors slice and never abort the page; a response
// without a contacts array yields an empty page with HasNextPage false.
func (c *Client) GetContacts(ctx context.Context, params PageParams) (*ContactPage, error) {
	body, err := c.doGet(ctx, EndpointContactsExport, params.query("updated_from", "updated_to"))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Contacts json.RawMessage `json:"contacts"`
		Exported int             `json:"exported"`
		Total    int             `json:"total"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{
			StatusCode: StatusInvalidEnvelope,
			Body:       truncate(body),
			Endpoint:   EndpointContactsExport,
			Err:        fmt.Errorf("decode export envelope: %w", err),
		}
	}

	var rawRecords []json.RawMessage
	if len(envelope.Contacts) == 0 || json.Unmarshal(envelope.Contacts, &rawRecords) != nil {
		c.logger.Warn().
			Str("endpoint", EndpointContactsExport).
			Int("total", envelope.Total).
			Msg("Export response missing contacts array - returning empty page")
		return &ContactPage{
			Pagination: Pagination{Total: envelope.Total},
		}, nil
	}

	contacts := make([]Contact, 0, len(rawRecords))
	var recordErrors []RecordError

	for i, raw := range rawRecords {
		contact, err := c.parseContact(raw)
		if err != nil {
			recordErrors = append(recordErrors, RecordError{Index: i, Err: err})
			apiRecordFailuresTotal.WithLabelValues(EndpointContactsExport).Inc()
			continue
		}
		contacts = append(contacts, contact)
	}

	if len(recordErrors) > 0 {
		c.logger.Warn().
			Str("endpoint", EndpointContactsExport).
			Int("parse_failures", len(recordErrors)).
			Int("parsed", len(contacts)).
			Str("first_failure", recordErrors[0].Error()).
			Msg("Some contact records failed validation")
	}

	return &ContactPage{
		Contacts: contacts,
		Errors:   recordErrors,
		Pagination: Pagination{
			Total:       envelope.Total,
			Exported:    envelope.Exported,
			HasNextPage: envelope.Exported >= params.limit(),
		},
	}, nil
}

// parseContact remaps aliased field names, decodes, and validates one raw
// contact record, retaining the original payload.
func (c *Client) parseContact(raw json.RawMessage) (Contact, error) {
	remapped, err := remapFields(raw, contactFieldAliases)
	if err != nil {
		return Contact{}, err
	}

	var contact Contact
	if err := json.Unmarshal(remapped, &contact); err != nil {
		return Contact{}, fmt.Errorf("decode contact: %w", err)
	}
	if err := c.validate.Struct(contact); err != nil {
		return Contact{}, fmt.Errorf("validate contact: %w", err)
	}

	contact.Raw = raw
	return contact, nil
}
