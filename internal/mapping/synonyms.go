package mapping

// Synonym groups are matched case-insensitively. Within a group, earlier
// members are preferred when several exist in the destination.

// linkTypeSynonyms covers the standard Jira link types and their common
// alternative phrasings across instances.
var linkTypeSynonyms = [][]string{
	{"relates to", "related to", "relates", "related"},
	{"blocks", "blocking", "blocked"},
	{"is blocked by", "blocked by", "is blocked", "depends on"},
	{"causes", "caused", "cause"},
	{"is caused by", "caused by", "effect of", "result of"},
	{"clones", "clone", "cloned from"},
	{"is cloned by", "cloned by", "cloned to"},
	{"duplicates", "duplicate of", "same as"},
	{"is duplicated by", "duplicated by", "copied from"},
	{"parent", "parent of", "parent task"},
	{"child", "child of", "subtask of", "is child of"},
	{"depends on", "dependency", "dependent on"},
	{"is required for", "required for", "required by"},
	{"follows", "follows after", "successor of"},
	{"precedes", "predecessor of"},
}

// statusSynonyms groups workflow states that mean the same thing under
// different workflow schemes.
var statusSynonyms = [][]string{
	{"to do", "backlog", "open", "new", "todo"},
	{"in progress", "in development", "doing", "started", "active"},
	{"in review", "review", "code review", "reviewing"},
	{"blocked", "on hold", "waiting", "impediment"},
	{"done", "closed", "resolved", "complete", "completed"},
	{"cancelled", "canceled", "won't do", "wont do", "rejected"},
}

// issueTypeSynonyms groups issue type names across type schemes.
var issueTypeSynonyms = [][]string{
	{"story", "user story", "feature"},
	{"bug", "defect", "fault", "problem"},
	{"task", "todo", "work item"},
	{"epic", "initiative", "theme"},
	{"sub-task", "subtask", "child task"},
	{"improvement", "enhancement"},
	{"spike", "research"},
}
