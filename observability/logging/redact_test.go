package logging

import "testing"

func TestMaskFieldRedactsAddresses(t *testing.T) {
	attr := MaskField("caller", "peg1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5z5tpwxqergd3c8g7rusq4w2cht")
	if got := attr.Value.String(); got != RedactedValue {
		t.Fatalf("caller not redacted: %s", got)
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("method", "stableswap_grantRole")
	if got := attr.Value.String(); got != "stableswap_grantRole" {
		t.Fatalf("allowlisted key mangled: %s", got)
	}
}

func TestMaskFieldPassesEmptyValues(t *testing.T) {
	attr := MaskField("recipient", "")
	if got := attr.Value.String(); got != "" {
		t.Fatalf("empty value mangled: %q", got)
	}
}

func TestIsAllowlistedNormalizesKey(t *testing.T) {
	if !IsAllowlisted(" Method ") {
		t.Fatal("allowlist lookup must trim and lowercase")
	}
	if IsAllowlisted("caller") {
		t.Fatal("caller must not be allowlisted")
	}
}
