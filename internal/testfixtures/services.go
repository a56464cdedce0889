package testfixtures

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/recurrence"
)

// BaseURL is the application URL embedded in fixture check-in tokens.
const BaseURL = "http://localhost:3000"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the zone calendar dates are evaluated in.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// StubEncoder renders a deterministic pseudo image for each payload so tests
// need no QR rendering.
type StubEncoder struct{}

// Encode implements checkin.Encoder.
func (StubEncoder) Encode(_ context.Context, content string) (string, error) {
	return "data:image/png;base64," + content, nil
}

// NewExpander returns an expander evaluating dates in the factory location
// with the default token policy and StubEncoder.
func (f *ServiceFactory) NewExpander() *calendar.Expander {
	issuer := checkin.NewIssuer(checkin.DefaultPolicy(f.Location), StubEncoder{}, BaseURL, nil)
	return calendar.NewExpander(recurrence.NewEngine(f.Location), issuer)
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// MemberServiceDeps captures dependencies for constructing a member service.
type MemberServiceDeps struct {
	Members     application.MemberRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewMemberService builds a member service using the supplied dependencies.
func (f *ServiceFactory) NewMemberService(deps MemberServiceDeps) *application.MemberService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewMemberServiceWithLogger(deps.Members, idGen, now, deps.Logger)
}

// MeetingServiceDeps captures dependencies for constructing a meeting service.
type MeetingServiceDeps struct {
	Meetings    application.MeetingRepository
	Expander    *calendar.Expander
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewMeetingService builds a meeting service. A nil Expander is replaced by
// NewExpander.
func (f *ServiceFactory) NewMeetingService(deps MeetingServiceDeps) *application.MeetingService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	expander := deps.Expander
	if expander == nil {
		expander = f.NewExpander()
	}
	return application.NewMeetingServiceWithLogger(deps.Meetings, expander, idGen, now, deps.Logger)
}

// AttendanceServiceDeps captures dependencies for constructing an attendance
// service.
type AttendanceServiceDeps struct {
	Records     application.AttendanceRepository
	Members     application.MemberRepository
	Meetings    application.MeetingRepository
	Expander    *calendar.Expander
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewAttendanceService builds an attendance service using the supplied
// dependencies.
func (f *ServiceFactory) NewAttendanceService(deps AttendanceServiceDeps) *application.AttendanceService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	expander := deps.Expander
	if expander == nil {
		expander = f.NewExpander()
	}
	return application.NewAttendanceService(application.AttendanceServiceDeps{
		Records:     deps.Records,
		Members:     deps.Members,
		Meetings:    deps.Meetings,
		Expander:    expander,
		IDGenerator: idGen,
		Now:         now,
		Logger:      deps.Logger,
	})
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	Hash        application.PasswordHasher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewUserServiceWithLogger(deps.Users, deps.Hash, idGen, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token, now := f.defaults(deps.TokenGenerator, deps.Now)
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
}
