package email

import (
	"encoding/base64"
	"io"
	"mime/quotedprintable"
)

const base64LineLength = 76

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, s); err != nil {
		return err
	}
	return qp.Close()
}

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > base64LineLength {
		if _, err := io.WriteString(w, encoded[:base64LineLength]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[base64LineLength:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
