package output

import "strings"

// secretMask replaces credentials in printed configuration.
const secretMask = "********"

// secretKeys are compared after lowercasing and dropping underscores, so
// both yaml ("secret_access_key") and Go ("SecretAccessKey") names match.
var secretKeys = map[string]bool{
	"password":        true,
	"secretaccesskey": true,
}

func isSecretKey(key string) bool {
	return secretKeys[strings.ToLower(strings.ReplaceAll(key, "_", ""))]
}
