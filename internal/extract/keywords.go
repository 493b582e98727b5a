package extract

// nameStopWords disqualify a line from being a person's name.
var nameStopWords = []string{"company", "ltd", "inc", "corp"}

// designationKeywords mark job titles and departments.
var designationKeywords = []string{
	"manager", "director", "engineer", "developer", "analyst", "consultant",
	"specialist", "executive", "officer", "president", "ceo", "cto", "cfo",
	"vp", "head", "lead", "senior", "junior", "associate", "assistant",
	"architect", "designer", "coordinator", "administrator", "supervisor",
	"chief", "partner", "founder", "owner", "principal", "neurologist",
	"doctor", "physician", "surgeon", "sales", "marketing", "hr", "finance",
}

// companyKeywords mark legal suffixes and words typical of company names.
var companyKeywords = []string{
	"ltd", "inc", "corporation", "company", "corp", "private", "limited",
	"tech", "solutions", "enterprises", "group", "industries", "systems",
	"technologies", "international", "global", "holdings", "ventures",
}
