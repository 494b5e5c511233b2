package gateway

import "strings"

// Display-name resolution for raw attendees. Each resolver is tried in
// order; the first non-empty result wins. A value of "N/A" (any case) counts
// as empty at every tier.
type nameResolver func(a RawAttendee) string

var nameResolvers = []nameResolver{
	func(a RawAttendee) string { return a.Title },
	func(a RawAttendee) string { return a.Name },
	func(a RawAttendee) string { return a.FullName },
	func(a RawAttendee) string { return a.HolderName },
	func(a RawAttendee) string {
		// Billing names are only usable as a pair.
		first := cleanName(a.BillingFirst)
		last := cleanName(a.BillingLast)
		if first == "" || last == "" {
			return ""
		}
		return first + " " + last
	},
	func(a RawAttendee) string { return prettifyEmailLocal(a.BestEmail()) },
}

// ResolveDisplayName walks the resolver chain and falls back to the literal
// "N/A" when even the email is empty.
func ResolveDisplayName(a RawAttendee) string {
	for _, resolve := range nameResolvers {
		if name := cleanName(resolve(a)); name != "" {
			return name
		}
	}
	return "N/A"
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// prettifyEmailLocal turns "jane.doe@x.com" into "Jane Doe": the local part
// with separators replaced by spaces, whitespace collapsed and each word
// title-cased.
func prettifyEmailLocal(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	replacer := strings.NewReplacer(".", " ", "_", " ", "-", " ")
	local = replacer.Replace(local)

	words := strings.Fields(local)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
