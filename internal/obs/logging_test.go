package obs

import (
	"strings"
	"testing"
)

func TestRedactURLQuery(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "signed token blanked",
			in:   "https://store.example.com/book.pdf?token=abc123",
			want: "https://store.example.com/book.pdf?token=%5Bredacted%5D",
		},
		{
			name: "aws style signature blanked",
			in:   "https://store.example.com/book.pdf?X-Amz-Signature=deadbeef&X-Amz-Expires=300",
			want: "https://store.example.com/book.pdf?X-Amz-Expires=%5Bredacted%5D&X-Amz-Signature=%5Bredacted%5D",
		},
		{
			name: "plain query untouched",
			in:   "https://store.example.com/book.pdf?version=2",
			want: "https://store.example.com/book.pdf?version=2",
		},
		{
			name: "no query untouched",
			in:   "https://store.example.com/book.pdf",
			want: "https://store.example.com/book.pdf",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RedactURLQuery(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRedactURLQueryNeverLeaksSecret(t *testing.T) {
	secret := "s3cr3t-signing-token"
	out := RedactURLQuery("https://store.example.com/book.pdf?sig=" + secret + "&page=4")
	if strings.Contains(out, secret) {
		t.Fatalf("secret survived redaction: %q", out)
	}
	if !strings.Contains(out, "page=4") {
		t.Fatalf("non-sensitive parameter dropped: %q", out)
	}
}
