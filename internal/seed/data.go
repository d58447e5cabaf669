package seed

import (
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/event"
	"libraryapi/internal/user"
)

func sampleBooks() []book.CreateInput {
	return []book.CreateInput{
		{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", Category: book.CategoryFiction, TotalCopies: 3, PublishedYear: 1960, Publisher: "Harper Perennial", Pages: 336, Rating: 4.8, Tags: []string{"classic", "justice"}},
		{Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Category: book.CategoryFiction, TotalCopies: 4, PublishedYear: 1949, Publisher: "Signet Classic", Pages: 328, Rating: 4.7, Tags: []string{"dystopia", "classic"}},
		{Title: "A Brief History of Time", Author: "Stephen Hawking", ISBN: "9780553380163", Category: book.CategoryScience, TotalCopies: 2, PublishedYear: 1988, Publisher: "Bantam", Pages: 212, Rating: 4.6, Tags: []string{"cosmology", "physics"}},
		{Title: "The Pragmatic Programmer", Author: "David Thomas, Andrew Hunt", ISBN: "9780135957059", Category: book.CategoryTechnology, TotalCopies: 2, PublishedYear: 2019, Publisher: "Addison-Wesley", Pages: 352, Rating: 4.7, Tags: []string{"software", "craft"}},
		{Title: "Sapiens", Author: "Yuval Noah Harari", ISBN: "9780062316097", Category: book.CategoryHistory, TotalCopies: 3, PublishedYear: 2015, Publisher: "Harper", Pages: 464, Rating: 4.5, Tags: []string{"anthropology"}},
		{Title: "Steve Jobs", Author: "Walter Isaacson", ISBN: "9781451648539", Category: book.CategoryBiography, TotalCopies: 1, PublishedYear: 2011, Publisher: "Simon & Schuster", Pages: 656, Rating: 4.4, Tags: []string{"technology", "business"}},
		{Title: "The Very Hungry Caterpillar", Author: "Eric Carle", ISBN: "9780399226908", Category: book.CategoryChildren, TotalCopies: 2, PublishedYear: 1969, Publisher: "Philomel", Pages: 26, Rating: 4.9, Tags: []string{"picture book"}},
		{Title: "The Hound of the Baskervilles", Author: "Arthur Conan Doyle", ISBN: "9780141199917", Category: book.CategoryMystery, TotalCopies: 2, PublishedYear: 1902, Publisher: "Penguin Classics", Pages: 256, Rating: 4.3, Tags: []string{"sherlock holmes"}},
		{Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "9780141439518", Category: book.CategoryRomance, TotalCopies: 2, PublishedYear: 1813, Publisher: "Penguin Classics", Pages: 480, Rating: 4.6, Tags: []string{"classic", "regency"}},
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", Category: book.CategoryFantasy, TotalCopies: 1, PublishedYear: 1937, Publisher: "Mariner", Pages: 300, Rating: 4.8, Tags: []string{"middle-earth"}},
		{Title: "Atomic Habits", Author: "James Clear", ISBN: "9780735211292", Category: book.CategorySelfHelp, TotalCopies: 3, PublishedYear: 2018, Publisher: "Avery", Pages: 320, Rating: 4.7, Tags: []string{"habits"}},
		{Title: "Merriam-Webster's Collegiate Dictionary", Author: "Merriam-Webster", ISBN: "9780877798095", Category: book.CategoryReference, TotalCopies: 1, PublishedYear: 2003, Publisher: "Merriam-Webster", Pages: 1664, Rating: 4.5, Tags: []string{"dictionary"}},
	}
}

const demoPassword = "Member#2024"

func sampleMembers() []user.CreateInput {
	members := []user.RegisterInput{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@library.local", Phone: "+44 20 7946 0001", MembershipType: string(user.MembershipPremium)},
		{FirstName: "Alan", LastName: "Turing", Email: "alan@library.local", MembershipType: string(user.MembershipBasic)},
		{FirstName: "Grace", LastName: "Hopper", Email: "grace@library.local", MembershipType: string(user.MembershipSenior)},
		{FirstName: "Linus", LastName: "Student", Email: "linus@library.local", MembershipType: string(user.MembershipStudent)},
	}
	out := make([]user.CreateInput, len(members))
	for i, m := range members {
		m.Password = demoPassword
		out[i] = user.CreateInput{RegisterInput: m}
	}
	return out
}

func sampleEvents(now time.Time) []event.CreateInput {
	day := func(n int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	return []event.CreateInput{
		{Title: "Monthly Book Club", Description: "This month: 1984 by George Orwell.", Date: day(7), Time: "18:30", Location: "Reading Room", MaxAttendees: 20, Category: "Book Club"},
		{Title: "Story Time for Kids", Description: "Picture books read aloud for ages 3 to 6.", Date: day(3), Time: "10:00", Location: "Children's Corner", MaxAttendees: 15, Category: "Children"},
		{Title: "Intro to Research Databases", Description: "Hands-on session on the library's online resources.", Date: day(14), Time: "14:00", Location: "Computer Lab", MaxAttendees: 12, Category: "Workshop"},
		{Title: "Local Author Talk", Description: "Meet the author and get your copy signed.", Date: day(21), Time: "19:00", Location: "Main Hall", MaxAttendees: 60, Category: "Author Talk"},
	}
}
