package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	tests := []struct {
		key  string
		val  interface{}
		want interface{}
	}{
		{"api_key", "abc", "[REDACTED]"},
		{"Authorization", "Bearer x", "[REDACTED]"},
		{"dsn", "host=db password=x", "[REDACTED]"},
		{"base_url", "sk-0123456789abcdefghijklmn", "[REDACTED]"},
		{"major", "电气工程", "电气工程"},
		{"count", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out := sanitizeKVs([]interface{}{tt.key, tt.val})
			if len(out) != 2 || out[1] != tt.want {
				t.Fatalf("sanitize %s: want=%v got=%v", tt.key, tt.want, out)
			}
		})
	}
}

func TestSanitizeKVsNestedAndOdd(t *testing.T) {
	out := sanitizeKVs([]interface{}{"meta", map[string]interface{}{"password": "p", "school": "重庆大学"}, "dangling"})
	nested := out[1].(map[string]interface{})
	if nested["password"] != "[REDACTED]" || nested["school"] != "重庆大学" {
		t.Fatalf("nested: got=%v", nested)
	}
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("odd trailing value should be kept: got=%v", out)
	}
}
