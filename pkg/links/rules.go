package links

import "fmt"

// Rules renders every rule of the repo as a sentence over three placeholder
// names, which default to subject, object and other. Tags from another repo
// are written repo:tag. Back-links come first, then self-links, predicates
// and singular tags, each group in tag registration order.
func (r *Repo) Rules(a, b, c string) []string {
	if a == "" {
		a = "subject"
	}
	if b == "" {
		b = "object"
	}
	if c == "" {
		c = "other"
	}

	var rules []string
	for _, trigger := range r.tagOrder {
		for _, bl := range r.backLinks[trigger] {
			rules = append(rules, fmt.Sprintf("All %s %s %s => %s %s %s",
				a, trigger, b, b, r.tagName(bl), a))
		}
	}
	for _, trigger := range r.tagOrder {
		for _, revTag := range r.selfLinks[trigger] {
			rules = append(rules, fmt.Sprintf("All %s %s %s => %s %s %s",
				a, trigger, b, b, revTag, a))
		}
	}
	for _, trigger := range r.tagOrder {
		for _, p := range r.predicates[trigger] {
			rules = append(rules, fmt.Sprintf("All %s %s %s => for %s where %s %s %s => %s %s %s",
				a, trigger, b, c, b, r.tagName(p.Query), c, a, r.tagName(p.Dependent), c))
		}
	}
	for _, tag := range r.tagOrder {
		if r.IsSingular(tag) {
			rules = append(rules, fmt.Sprintf("All %s %s %s => No %s %s %s",
				a, tag, b, a, tag, c))
		}
	}
	return rules
}

func (r *Repo) tagName(t Tag) string {
	if t.Repo == nil || t.Repo == r {
		return t.Name
	}
	return t.Repo.label + ":" + t.Name
}
