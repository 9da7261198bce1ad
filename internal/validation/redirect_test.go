package validation

import "testing"

func TestValidRedirectURI(t *testing.T) {
	cases := []struct {
		uri string
		ok  bool
	}{
		{"https://app.example/callback", true},
		{"http://localhost:3000/cb", true},
		{"http://127.0.0.1/cb", true},
		{"com.example.app:/oauth2redirect", true},
		{"http://app.example/callback", false}, // http no loopback
		{"https://app.example/cb#frag", false},
		{"/relative", false},
		{"", false},
		{"   ", false},
	}
	for _, c := range cases {
		if got := ValidRedirectURI(c.uri); got != c.ok {
			t.Fatalf("ValidRedirectURI(%q) = %v, want %v", c.uri, got, c.ok)
		}
	}
}

func TestRedirectAllowed_ExactMatchOnly(t *testing.T) {
	registered := []string{"https://app.example/callback"}
	if !RedirectAllowed(registered, "https://app.example/callback") {
		t.Fatal("exact match should be allowed")
	}
	for _, uri := range []string{
		"https://app.example/callback/",
		"https://app.example/callback?x=1",
		"https://app.example/CALLBACK",
		"https://evil.example/callback",
	} {
		if RedirectAllowed(registered, uri) {
			t.Fatalf("non-exact match should be rejected: %q", uri)
		}
	}
}
