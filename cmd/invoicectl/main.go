// Command invoicectl runs the invoice extraction pipeline from the shell.
//
// Usage:
//
//	invoicectl parse scan.txt                  # Heuristic parse, no model call
//	invoicectl extract --text scan.txt         # Full pipeline on OCR text
//	invoicectl extract --image invoice.jpg     # Full pipeline on an image
//	invoicectl export record.json -o out.xlsx  # Workbook from a record
//	invoicectl token --subject ops --ttl 24h   # Mint an API token
package main

import (
	"github.com/snaptosheet/invoice-extract-service/cmd/invoicectl/cmd"
)

var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
