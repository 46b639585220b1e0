package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/studentportal/internal/client"
)

type RegisterCmd struct {
	FullName string `help:"Full name" required:""`
	Email    string `help:"Email address" required:""`
	Password string `help:"Password" required:"" env:"PORTALCTL_PASSWORD"`
	Phone    string `help:"Phone number" default:""`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	user, err := s.client.Register(ctx, client.Registration{
		FullName: r.FullName,
		Email:    r.Email,
		Password: r.Password,
		Phone:    r.Phone,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if err := s.save(user.Email, false); err != nil {
		return err
	}

	fmt.Printf("Registered %s <%s> and signed in.\n", user.FullName, user.Email)
	return nil
}

type LoginCmd struct {
	Email    string `help:"Email address" required:""`
	Password string `help:"Password" required:"" env:"PORTALCTL_PASSWORD"`
	Remember bool   `help:"Keep the session for 30 days" default:"false"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	user, err := s.client.Login(ctx, l.Email, l.Password, l.Remember)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := s.save(user.Email, l.Remember); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s <%s>.\n", user.FullName, user.Email)
	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	if s.client.Session() != "" {
		if err := s.client.Logout(ctx); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
	}

	if err := s.forget(); err != nil {
		return err
	}

	fmt.Println("Signed out.")
	return nil
}

type MeCmd struct{}

func (m *MeCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	me, err := s.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	if me == nil {
		// Expired or revoked on the server
		_ = s.forget()
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Printf("Name:     %s\n", me.FullName)
	fmt.Printf("Email:    %s\n", me.Email)
	if me.Phone != "" {
		fmt.Printf("Phone:    %s\n", me.Phone)
	}

	enrolled := "none"
	if len(me.EnrolledCourseIDs) > 0 {
		enrolled = strings.Join(me.EnrolledCourseIDs, ", ")
	}
	fmt.Printf("Enrolled: %s\n", enrolled)

	return nil
}
