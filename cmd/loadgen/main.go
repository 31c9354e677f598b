package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	successColor = "\033[32m" // Green
	errorColor   = "\033[31m" // Red
	infoColor    = "\033[34m" // Blue
	resetColor   = "\033[0m"  // Reset color
)

var (
	baseURL         = flag.String("url", "http://localhost:8080", "ledger API base URL")
	numAccounts     = flag.Int("accounts", 100, "number of accounts to open")
	numTransactions = flag.Int("transactions", 10000, "total number of movements")
	maxConcurrency  = flag.Int("concurrency", 200, "maximum number of concurrent requests")
	initialBalance  = flag.String("initial-balance", "10000", "opening balance of each account")
	maxAmount       = flag.Int("max-amount", 1000, "maximum movement amount")
)

var client = &http.Client{Timeout: 30 * time.Second}

type Account struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}

// tally tracks the net money that entered the system through successful movements.
type tally struct {
	mu        sync.Mutex
	succeeded map[string]int
	rejected  int
	failed    int
	netIn     decimal.Decimal
}

func main() {
	flag.Parse()

	fmt.Printf("%sstarting a heavy load test with %d accounts and %d movements%s\n",
		infoColor, *numAccounts, *numTransactions, resetColor)

	accounts := createAccounts(*numAccounts)
	if len(accounts) < 2 {
		fmt.Printf("%snot enough accounts to run transfers%s\n", errorColor, resetColor)
		os.Exit(1)
	}
	fmt.Printf("%sCreated %d accounts%s\n", successColor, len(accounts), resetColor)

	sem := make(chan struct{}, *maxConcurrency)
	var wg sync.WaitGroup
	results := &tally{succeeded: make(map[string]int)}
	startTime := time.Now()

	for i := 0; i < *numTransactions; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()

			kind, status, amount, err := randomMovement(accounts)
			results.record(kind, status, amount, err)
			if err != nil && n%100 == 0 {
				fmt.Printf("%s%s failed: %v%s\n", errorColor, kind, err, resetColor)
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Printf("\n%s=== heavy load Test Results ===%s\n", infoColor, resetColor)
	fmt.Printf("Total number of movements: %d\n", *numTransactions)
	for kind, count := range results.succeeded {
		fmt.Printf("  %s: %s%d succeeded%s\n", kind, successColor, count, resetColor)
	}
	fmt.Printf("Rejected by business rules: %d\n", results.rejected)
	fmt.Printf("Failed: %s%d%s\n", errorColor, results.failed, resetColor)
	fmt.Printf("Duration: %.2f seconds\n", duration.Seconds())
	fmt.Printf("Throughput: %.2f movements/second\n", float64(*numTransactions)/duration.Seconds())

	fmt.Printf("\n%sChecking final account balances...%s\n", infoColor, resetColor)
	if !checkBalances(accounts, results.netIn) {
		os.Exit(1)
	}
}

func (t *tally) record(kind string, status int, amount decimal.Decimal, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case err == nil:
		t.succeeded[kind]++
		switch kind {
		case "deposit":
			t.netIn = t.netIn.Add(amount)
		case "withdrawal":
			t.netIn = t.netIn.Sub(amount)
		}
	case status == http.StatusUnprocessableEntity:
		t.rejected++
	default:
		t.failed++
	}
}

// randomMovement fires one deposit, withdrawal or transfer against random accounts.
func randomMovement(accounts []Account) (string, int, decimal.Decimal, error) {
	amount := decimal.New(int64(100+rand.Intn(*maxAmount*100-99)), -2)
	from := accounts[rand.Intn(len(accounts))]

	switch rand.Intn(3) {
	case 0:
		status, err := post(fmt.Sprintf("/accounts/%s/deposits", from.ID), map[string]interface{}{
			"amount": amount, "reference": uuid.NewString(),
		}, nil)
		return "deposit", status, amount, err
	case 1:
		status, err := post(fmt.Sprintf("/accounts/%s/withdrawals", from.ID), map[string]interface{}{
			"amount": amount, "category": "other", "reference": uuid.NewString(),
		}, nil)
		return "withdrawal", status, amount, err
	default:
		to := accounts[rand.Intn(len(accounts))]
		for to.ID == from.ID {
			to = accounts[rand.Intn(len(accounts))]
		}
		status, err := post("/transfers", map[string]interface{}{
			"from_account_id": from.ID, "to_account_id": to.ID, "amount": amount, "reference": uuid.NewString(),
		}, nil)
		return "transfer", status, amount, err
	}
}

// createAccounts creates the specified number of accounts
func createAccounts(count int) []Account {
	accounts := make([]Account, 0, count)

	// One owner per account keeps the owner-wide transfer caps out of the way.
	for i := 0; i < count; i++ {
		var account Account
		_, err := post("/accounts", map[string]interface{}{
			"owner_id":        uuid.NewString(),
			"account_type":    "current",
			"initial_balance": *initialBalance,
		}, &account)
		if err != nil {
			fmt.Printf("%sFailed to create account: %v%s\n", errorColor, err, resetColor)
			continue
		}

		accounts = append(accounts, account)
		if i%10 == 0 || i == count-1 {
			fmt.Printf("%screated account %d/%d: %s with balance %s%s\n",
				successColor, i+1, count, account.ID, account.Balance.StringFixed(2), resetColor)
		}
	}
	return accounts
}

func post(path string, body interface{}, dst interface{}) (int, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	resp, err := client.Post(*baseURL+path, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status: %d, body: %s", resp.StatusCode, string(raw))
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func getJSON(path string, dst interface{}) error {
	resp, err := client.Get(*baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status: %d, body: %s", resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// checkBalances verifies no balance went negative and that, transfers being
// internal, the total moved only by successful deposits and withdrawals.
func checkBalances(accounts []Account, netIn decimal.Decimal) bool {
	ok := true
	opening := decimal.Zero
	closing := decimal.Zero

	for i, original := range accounts {
		var account Account
		if err := getJSON("/accounts/"+original.ID, &account); err != nil {
			fmt.Printf("%sError retrieving account %s: %v%s\n", errorColor, original.ID, err, resetColor)
			return false
		}
		opening = opening.Add(original.Balance)
		closing = closing.Add(account.Balance)

		if account.Balance.IsNegative() {
			ok = false
			fmt.Printf("%sAccount %s has a negative balance %s%s\n",
				errorColor, account.ID, account.Balance.StringFixed(2), resetColor)
		}

		if i < 10 {
			var transactions []Transaction
			if err := getJSON("/accounts/"+account.ID+"/transactions?limit=1000", &transactions); err != nil {
				fmt.Printf("%sError retrieving transactions for account %s: %v%s\n",
					errorColor, account.ID, err, resetColor)
				continue
			}
			completed, failed := 0, 0
			for _, tx := range transactions {
				switch tx.Status {
				case "completed":
					completed++
				case "failed":
					failed++
				}
			}
			fmt.Printf("%sAccount %d: %s%s\n", infoColor, i+1, account.ID, resetColor)
			fmt.Printf("  Original balance: %s, Current balance: %s\n",
				original.Balance.StringFixed(2), account.Balance.StringFixed(2))
			fmt.Printf("  Transactions: %d total (%d completed, %d failed)\n", len(transactions), completed, failed)
		}
	}

	expected := opening.Add(netIn)
	if !closing.Equal(expected) {
		ok = false
		fmt.Printf("%sTotal balance %s does not match expected %s%s\n",
			errorColor, closing.StringFixed(2), expected.StringFixed(2), resetColor)
	} else {
		fmt.Printf("%sTotal balance %s matches the accepted movements%s\n",
			successColor, closing.StringFixed(2), resetColor)
	}
	return ok
}
