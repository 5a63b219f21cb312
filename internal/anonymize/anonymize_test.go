package anonymize

import "testing"

func TestRedact_Phone(t *testing.T) {
	got := Redact("Gọi 0901.234.567 nha")
	if got != "Gọi [SDT] nha" {
		t.Errorf("expected 'Gọi [SDT] nha', got %q", got)
	}
}

func TestRedact_PhoneVariants(t *testing.T) {
	cases := map[string]string{
		"sdt 0901234567":       "sdt [SDT]",
		"+84 90 123 4567 nhé":  "[SDT] nhé",
		"84-901-234-567":       "[SDT]",
		"số 0 901 234 567":     "số [SDT]",
		"không có số nào ở đây": "không có số nào ở đây",
	}
	for in, want := range cases {
		if got := Redact(in); got != want {
			t.Errorf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedact_Email(t *testing.T) {
	got := Redact("mail mình là khach.hang+vip@gmail.com nhé")
	if got != "mail mình là [EMAIL] nhé" {
		t.Errorf("got %q", got)
	}
}

func TestRedact_EmailWithDigitRunNotEatenByPhonePattern(t *testing.T) {
	got := Redact("liên hệ shop0901234567@gmail.com")
	if got != "liên hệ [EMAIL]" {
		t.Errorf("expected email redacted whole, got %q", got)
	}

	got = Redact("gửi về 0901234567@yahoo.com trước 5h")
	if got != "gửi về [EMAIL] trước 5h" {
		t.Errorf("expected email redacted whole, got %q", got)
	}
}

func TestRedact_PhoneAndEmailTogether(t *testing.T) {
	got := Redact("SĐT 0901.234.567, mail abc@o2skin.vn")
	if got != "SĐT [SDT], mail [EMAIL]" {
		t.Errorf("got %q", got)
	}
}

func TestRedact_Idempotent(t *testing.T) {
	inputs := []string{
		"Gọi 0901.234.567 nha",
		"mail abc@o2skin.vn và số 0901234567",
		"đã che [SDT] và [EMAIL] rồi",
		"plain text",
	}
	for _, in := range inputs {
		once := Redact(in)
		twice := Redact(once)
		if once != twice {
			t.Errorf("Redact not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestRedact_Empty(t *testing.T) {
	if got := Redact(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
