package gateway

import "testing"

func TestParseAddressesDedupes(t *testing.T) {
	got, err := ParseAddresses([]string{
		"0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		" 0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640 ",
		"",
		"0xC6962004f452bE9203591991D15f6b388e09E8D0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("address count: %d", len(got))
	}
}

func TestParseAddressesInvalid(t *testing.T) {
	if _, err := ParseAddresses([]string{"not-an-address"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestParseTopic0Dedupes(t *testing.T) {
	topic := "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
	got, err := ParseTopic0([]string{topic, topic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("topic count: %d", len(got))
	}
}

func TestParseTopic0Invalid(t *testing.T) {
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short topic")
	}
}

func TestDefaultTopics(t *testing.T) {
	topics, err := DefaultTopics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 4 {
		t.Fatalf("topic count: %d", len(topics))
	}
	seen := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		if _, ok := seen[topic.Hex()]; ok {
			t.Fatalf("duplicate topic %s", topic.Hex())
		}
		seen[topic.Hex()] = struct{}{}
	}
}
