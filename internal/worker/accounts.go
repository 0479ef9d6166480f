package worker

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Account is one credential pair from the accounts file.
type Account struct {
	Username string
	Password string
}

// LoadAccounts parses the newline-delimited "username:password" accounts
// file. Comment lines (#) and blanks are skipped; the result is shuffled so
// partitions don't always get the same accounts across restarts.
func LoadAccounts(path string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("accounts file: %w", err)
	}
	defer f.Close()

	var accounts []Account
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Passwords may themselves contain ':'; split on the first only.
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("accounts file line %d: expected username:password", lineNo)
		}
		accounts = append(accounts, Account{Username: parts[0], Password: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	rand.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})
	return accounts, nil
}

// Partition slices accounts into chunks of at most size.
func Partition(accounts []Account, size int) [][]Account {
	if size <= 0 {
		size = len(accounts)
	}
	var parts [][]Account
	for start := 0; start < len(accounts); start += size {
		end := start + size
		if end > len(accounts) {
			end = len(accounts)
		}
		parts = append(parts, accounts[start:end])
	}
	return parts
}
