// Package media renders table QR codes and stores menu images.
package media

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of a table QR code.
const DefaultQRSize = 512

// TableURL is the customer-facing ordering page for a table.
func TableURL(baseURL string, tableID int32) string {
	return fmt.Sprintf("%s/table/%d", strings.TrimRight(baseURL, "/"), tableID)
}

// QRCode encodes content as a size x size PNG.
func QRCode(content string, size int) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return png, nil
}

// QRFilename is the download name for a table's QR code, e.g. "table-3-window.png".
func QRFilename(tableID int32, tableName string) string {
	base := fmt.Sprintf("table-%d", tableID)
	if s := slug.Make(tableName); s != "" {
		base += "-" + s
	}
	return base + ".png"
}
