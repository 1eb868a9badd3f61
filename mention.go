package vchat

import (
	"fmt"
	"regexp"
)

var (
	mentionRegexp = regexp.MustCompile(`<m id="([^"]+)">([^<]+)</m>`)
	userIDRegexp  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// expandMentions rewrites `<m id="...">Name</m>` mention tags in message
// text into profile deep links. Tags with an id the client could not
// open degrade to the plain display name.
func expandMentions(text string) string {
	return mentionRegexp.ReplaceAllStringFunc(text, func(match string) string {
		submatches := mentionRegexp.FindStringSubmatch(match)
		if len(submatches) < 3 {
			return match
		}
		id := submatches[1]
		name := submatches[2]
		if !userIDRegexp.MatchString(id) {
			return name
		}
		return fmt.Sprintf(`<a href="vchat://users/%s">%s</a>`, id, name)
	})
}
