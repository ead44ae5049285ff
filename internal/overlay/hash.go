package overlay

// hashTag prefixes every dedup hash so stored hashes are recognizable in
// diagnostic output.
const hashTag = "console-error:"

// hashLength is the number of leading message characters that participate in
// the dedup fingerprint.
const hashLength = 100

// DedupHash fingerprints a formatted console error message. The hash is the
// fixed tag plus the first 100 characters of the message, which is enough to
// suppress immediate repeats without a full digest. Only console-kind
// reports are deduplicated; overlay reports bypass hashing entirely.
func DedupHash(message string) string {
	if len(message) > hashLength {
		message = message[:hashLength]
	}
	return hashTag + message
}
