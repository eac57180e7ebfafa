// Command inspector is an operator tool for a running pegvault server:
// it prints the treasury views and signs identity proofs for the
// mutating endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pegvault/pegvault/internal/signer"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	keyHex := flag.String("key", "", "private key hex (sign only)")
	issuedAt := flag.Int64("issued-at", 0, "proof timestamp, unix seconds (sign only, default now)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "config":
		get(*base + "/v1/treasury/config")
	case "supply":
		get(*base + "/v1/treasury/supply")
	case "loans":
		get(*base + "/v1/loans")
	case "audit":
		get(*base + "/v1/audit")
	case "health":
		get(*base + "/health")
	case "sign":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		sign(*keyHex, *issuedAt, args[1], args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  inspector [-base URL] config|supply|loans|audit|health
  inspector -key HEX [-issued-at UNIX] sign OPERATION [ARG...]

examples:
  inspector config
  inspector -key $ADMIN_KEY sign set_loan_fee 1000
  inspector -key $ADMIN_KEY sign increase_supply 100000000
  inspector -key $BORROWER_KEY sign flash_loan 0xA1..Asset 1000000`)
}

func get(url string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s\n", resp.Status, prettify(body))
}

func sign(keyHex string, issuedAt int64, operation string, args []string) {
	if keyHex == "" {
		fmt.Fprintln(os.Stderr, "sign requires -key")
		os.Exit(2)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad private key: %v\n", err)
		os.Exit(1)
	}

	ts := time.Now()
	if issuedAt != 0 {
		ts = time.Unix(issuedAt, 0)
	}

	proof, err := signer.SignOperation(key, operation, ts, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(map[string]interface{}{
		"signer":    proof.Signer.Hex(),
		"signature": hexutil.Encode(proof.Signature),
		"issued_at": proof.IssuedAt.Unix(),
	}, "", "  ")
	fmt.Println(string(out))
}

func prettify(body []byte) string {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return string(body)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(out)
}
