package seed

import (
	"fmt"
	"strings"
	"time"

	"bloghub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds domain entities populated with fake content. It never
// touches the database; the Seeder persists what it builds.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
	now     func() time.Time
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays, now: time.Now}
}

// Faker exposes the underlying generator for callers that need extra randomness.
func (f *Factory) Faker() *gofakeit.Faker { return f.faker }

// BuildUser returns an unsaved member. i keeps the email unique within a run.
func (f *Factory) BuildUser(i int, passwordHash string, status models.AccessStatus, overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Name:         first + " " + last,
		Email:        strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, i)),
		Password:     passwordHash,
		AccessStatus: status,
		Role:         models.RoleMember,
		CreatedAt:    f.pastTime(f.maxDays),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildPost returns an unsaved post by author with markdown content and a
// creation time within the configured window.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.BlogPost)) *models.BlogPost {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	post := &models.BlogPost{
		Title:     title,
		Content:   f.markdown(),
		Tags:      strings.Join([]string{f.faker.Hobby(), f.faker.Word(), f.faker.Word()}, ","),
		Category:  models.Categories[f.faker.Number(0, len(models.Categories)-1)],
		Views:     f.faker.Number(0, 2000),
		UserID:    author.ID,
		CreatedAt: f.pastTime(f.maxDays),
	}
	post.UpdatedAt = post.CreatedAt
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildComment returns an unsaved comment by user on post, optionally a reply.
func (f *Factory) BuildComment(user *models.User, post *models.BlogPost, parent *models.Comment) *models.Comment {
	uid := user.ID
	c := &models.Comment{
		PostID:    post.ID,
		UserID:    &uid,
		Author:    user.Name,
		Content:   f.faker.Sentence(f.faker.Number(4, 20)),
		CreatedAt: f.after(post.CreatedAt),
	}
	if parent != nil {
		pid := parent.ID
		c.ParentCommentID = &pid
		c.CreatedAt = f.after(parent.CreatedAt)
	}
	return c
}

// EngagementTime picks a moment between the post's creation and now.
func (f *Factory) EngagementTime(post *models.BlogPost) time.Time {
	return f.after(post.CreatedAt)
}

func (f *Factory) markdown() string {
	var sb strings.Builder
	paragraphs := f.faker.Number(1, 4)
	for i := 0; i < paragraphs; i++ {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if i == 1 {
			sb.WriteString("## " + f.faker.HipsterSentence(3) + "\n\n")
		}
		sb.WriteString(f.faker.Paragraph(1, f.faker.Number(2, 5), 12, " "))
	}
	return sb.String()
}

func (f *Factory) pastTime(maxDays int) time.Time {
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return f.now().Add(-back)
}

func (f *Factory) after(t time.Time) time.Time {
	span := f.now().Sub(t)
	if span <= time.Minute {
		return f.now()
	}
	return t.Add(time.Duration(f.faker.Number(1, int(span/time.Minute))) * time.Minute)
}
