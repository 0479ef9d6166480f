package worker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	content := `# fleet accounts
alice:secret1

bob:pass:with:colons
  charlie:secret3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write accounts: %v", err)
	}

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("got %d accounts, want 3", len(accounts))
	}

	byName := make(map[string]string)
	for _, a := range accounts {
		byName[a.Username] = a.Password
	}
	if byName["alice"] != "secret1" {
		t.Fatalf("alice password = %q", byName["alice"])
	}
	if byName["bob"] != "pass:with:colons" {
		t.Fatalf("colons in passwords must survive, got %q", byName["bob"])
	}
	if byName["charlie"] != "secret3" {
		t.Fatalf("charlie password = %q", byName["charlie"])
	}
}

func TestLoadAccountsRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	if err := os.WriteFile(path, []byte("justausername\n"), 0o600); err != nil {
		t.Fatalf("write accounts: %v", err)
	}
	if _, err := LoadAccounts(path); err == nil {
		t.Fatal("line without a colon must be rejected")
	}
}

func TestPartition(t *testing.T) {
	accounts := make([]Account, 7)
	for i := range accounts {
		accounts[i] = Account{Username: string(rune('a' + i))}
	}

	parts := Partition(accounts, 3)
	if len(parts) != 3 {
		t.Fatalf("got %d partitions, want 3", len(parts))
	}
	if len(parts[0]) != 3 || len(parts[1]) != 3 || len(parts[2]) != 1 {
		t.Fatalf("partition sizes = %d/%d/%d", len(parts[0]), len(parts[1]), len(parts[2]))
	}

	// Zero size means one partition with everything.
	parts = Partition(accounts, 0)
	if len(parts) != 1 || len(parts[0]) != 7 {
		t.Fatalf("unsharded partition = %d parts", len(parts))
	}
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := percentile(samples, 50); got != 50 {
		t.Fatalf("p50 = %d", got)
	}
	if got := percentile(samples, 90); got != 90 {
		t.Fatalf("p90 = %d", got)
	}
	if got := percentile(samples, 95); got != 100 {
		t.Fatalf("p95 = %d", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty percentile = %d", got)
	}
}
