package notify

import "testing"

func TestComposerOrderPlaced(t *testing.T) {
	composer, err := NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	msg := composer.OrderPlaced("MK-1234", 250)

	wantText := "Hi! I just placed order #MK-1234 on shop.with.mukuu.\nTotal Amount: ₹250"
	if msg.Text != wantText {
		t.Fatalf("unexpected text %q", msg.Text)
	}
	wantURL := "https://wa.me/919876543210?text=Hi!%20I%20just%20placed%20order%20%23MK-1234%20on%20shop.with.mukuu.%0ATotal%20Amount%3A%20%E2%82%B9250"
	if msg.URL != wantURL {
		t.Fatalf("unexpected url\n got %s\nwant %s", msg.URL, wantURL)
	}
	if msg.Channel != ChannelWhatsApp || msg.Destination != "919876543210" || msg.OrderCode != "MK-1234" || msg.Total != 250 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestNewComposerRejectsNonDigitNumber(t *testing.T) {
	if _, err := NewComposer("+91 98765", ""); err == nil {
		t.Fatalf("expected error for formatted number")
	}
}

func TestEncodeURIComponent(t *testing.T) {
	cases := map[string]string{
		"a b":        "a%20b",
		"1+1=2":      "1%2B1%3D2",
		"(ok)*!'~-_": "(ok)*!'~-_",
		"a/b?c&d":    "a%2Fb%3Fc%26d",
	}
	for in, want := range cases {
		if got := encodeURIComponent(in); got != want {
			t.Fatalf("encodeURIComponent(%q) = %q, want %q", in, got, want)
		}
	}
}
