package testutil

// PDFBody builds a synthetic document of exactly size bytes that starts
// with the PDF signature, so full-file validation accepts it.
func PDFBody(size int) []byte {
	header := []byte("%PDF-1.4\n")
	if size <= len(header) {
		return header[:size]
	}
	body := make([]byte, size)
	copy(body, header)
	for i := len(header); i < size; i++ {
		body[i] = byte('0' + i%10)
	}
	return body
}
