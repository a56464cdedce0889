package testfixtures

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/club-crm/internal/application"
)

type capturingUserRepo struct {
	created application.User
	hash    string
}

func (c *capturingUserRepo) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	c.created = user
	c.hash = passwordHash
	return user, nil
}

func (c *capturingUserRepo) GetUser(ctx context.Context, id string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

func (c *capturingUserRepo) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

func (c *capturingUserRepo) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	return user, nil
}

func (c *capturingUserRepo) DeleteUser(ctx context.Context, id string) error {
	return nil
}

func (c *capturingUserRepo) ListUsers(ctx context.Context) ([]application.User, error) {
	return nil, nil
}

func TestServiceFactoryNewUserService(t *testing.T) {
	t.Parallel()

	ids := NewIDGenerator("user")
	factory := NewServiceFactory(WithIDGenerator(ids))
	repo := &capturingUserRepo{}

	svc := factory.NewUserService(UserServiceDeps{
		Users: repo,
		Hash:  func(password string) (string, error) { return "hashed:" + password, nil },
	})
	principal := application.Principal{UserID: "admin", IsAdmin: true}
	input := application.UserInput{Email: "user@example.com", DisplayName: "User", Password: "correct-horse"}

	user, err := svc.CreateUser(context.Background(), application.CreateUserParams{Principal: principal, Input: input})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if user.ID != "user-1" {
		t.Fatalf("expected generated ID user-1, got %q", user.ID)
	}
	if issued := ids.Issued(); len(issued) != 1 || issued[0] != user.ID {
		t.Fatalf("expected a single issued ID, got %v", issued)
	}
	if repo.created.ID != user.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if repo.hash != "hashed:correct-horse" {
		t.Fatalf("expected hashed password, got %q", repo.hash)
	}
	if !user.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), user.CreatedAt)
	}
}

func TestServiceFactoryNewExpander(t *testing.T) {
	t.Parallel()

	factory := NewServiceFactory()
	expander := factory.NewExpander()
	meeting := NewMeetingFixture(WithMeetingID("m-1")).Calendar()

	result, err := expander.Expand(context.Background(), meeting, factory.Clock.Now())
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if len(result.Occurrences) != 1 {
		t.Fatalf("expected one occurrence, got %d", len(result.Occurrences))
	}
	token := result.Occurrences[0].Token
	if token == nil || !strings.HasPrefix(token.URL, BaseURL+"/") {
		t.Fatalf("expected token under %s, got %+v", BaseURL, token)
	}
	if err := token.Validate(); err != nil {
		t.Fatalf("stub token should validate: %v", err)
	}
}

func TestClockAdvanceDays(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	got := clock.AdvanceDays(2)
	if want := ReferenceTime().AddDate(0, 0, 2); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
