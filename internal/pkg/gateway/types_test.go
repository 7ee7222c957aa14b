package gateway

import "testing"

func TestParseWebhookPayload(t *testing.T) {
	raw := []byte(`{
		"event_type": "merchant.succeeded",
		"object": {"type": "merchant", "id": "mch_1", "status": "active"}
	}`)

	p, err := ParseWebhookPayload(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.EventType != "merchant.succeeded" {
		t.Fatalf("unexpected event type %q", p.EventType)
	}
	if p.ObjectID != "mch_1" || p.ObjectType != "merchant" {
		t.Fatalf("unexpected object meta: id=%q type=%q", p.ObjectID, p.ObjectType)
	}
}

func TestParseWebhookPayloadObjectTypeFromEventType(t *testing.T) {
	raw := []byte(`{
		"event_type": "payment.succeeded",
		"object": {"id": "pay_1", "status": "succeeded"}
	}`)

	p, err := ParseWebhookPayload(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.ObjectType != "payment" {
		t.Fatalf("expected object type derived from event type, got %q", p.ObjectType)
	}
}

func TestParseWebhookPayloadErrors(t *testing.T) {
	cases := [][]byte{
		[]byte(`{}`),
		[]byte(`{"event_type":"payment.succeeded"}`),
		[]byte(`{"event_type":"payment.succeeded","object":{"status":"succeeded"}}`),
		[]byte(`not json`),
	}
	for i, raw := range cases {
		if _, err := ParseWebhookPayload(raw); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestPaymentMetadataFlexibleDecoding(t *testing.T) {
	p, err := ParsePayment([]byte(`{
		"id": "pay_9",
		"status": "succeeded",
		"amount": {"value": "500.00", "currency": "RUB"},
		"metadata": {
			"transaction_id": "txn_9",
			"organization_id": 42,
			"fundraiser_id": "7",
			"project_id": null
		}
	}`))
	if err != nil {
		t.Fatalf("ParsePayment: %v", err)
	}
	md := p.Metadata
	if md.TransactionID != "txn_9" {
		t.Fatalf("transaction_id = %q", md.TransactionID)
	}
	if md.OrganizationID != 42 {
		t.Fatalf("numeric organization_id = %d", md.OrganizationID)
	}
	if md.FundraiserID != 7 {
		t.Fatalf("string fundraiser_id = %d", md.FundraiserID)
	}
	if md.ProjectID != 0 {
		t.Fatalf("null project_id = %d", md.ProjectID)
	}
}

func TestParsePaymentRetainsRaw(t *testing.T) {
	raw := []byte(`{"id":"pay_1","status":"pending","custom_field":"kept"}`)
	p, err := ParsePayment(raw)
	if err != nil {
		t.Fatalf("ParsePayment: %v", err)
	}
	if string(p.Raw) != string(raw) {
		t.Fatalf("raw payload must be retained verbatim")
	}
}
