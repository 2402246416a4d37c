// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package listeners

import (
	"context"
	"fmt"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gobwas/glob"
	"github.com/vmware/stompsession-go/log"
	"github.com/vmware/stompsession-go/stompsession"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentialsError = listenerError("Invalid credentials")

type listenerError string

func (e listenerError) Error() string {
	return string(e)
}

func accessDenied(destination string) error {
	return listenerError(fmt.Sprintf("Access to '%s' denied", destination))
}

// Credentials describes one user allowed to connect.
type Credentials struct {
	Login string
	// PasscodeHash is a bcrypt hash of the user's passcode.
	PasscodeHash string
	// Destinations are glob patterns of the destinations the user may send or subscribe to.
	// '*' matches within one path segment and '**' across segments.
	Destinations []string
}

type account struct {
	passcodeHash []byte
	destinations []glob.Glob
}

// Authenticator holds the compiled user table shared by all sessions.
type Authenticator struct {
	accounts map[string]*account
}

func NewAuthenticator(users []Credentials) (*Authenticator, error) {
	a := &Authenticator{accounts: make(map[string]*account)}
	for _, user := range users {
		if user.Login == "" {
			return nil, fmt.Errorf("user without login")
		}
		if _, err := bcrypt.Cost([]byte(user.PasscodeHash)); err != nil {
			return nil, fmt.Errorf("invalid passcode hash for user '%s': %w", user.Login, err)
		}
		acc := &account{passcodeHash: []byte(user.PasscodeHash)}
		for _, pattern := range user.Destinations {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid destination pattern '%s' for user '%s': %w",
					pattern, user.Login, err)
			}
			acc.destinations = append(acc.destinations, g)
		}
		a.accounts[user.Login] = acc
	}
	return a, nil
}

// HashPasscode returns the bcrypt hash stored in Credentials.PasscodeHash.
func HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Authenticator) authenticate(login string, passcode string) (*account, error) {
	acc, ok := a.accounts[login]
	if !ok {
		return nil, invalidCredentialsError
	}
	if err := bcrypt.CompareHashAndPassword(acc.passcodeHash, []byte(passcode)); err != nil {
		return nil, invalidCredentialsError
	}
	return acc, nil
}

// NewListener returns an AuthListener for one session that forwards accepted commands
// to delegate.
func (a *Authenticator) NewListener(delegate stompsession.CommandListener) *AuthListener {
	return &AuthListener{authenticator: a, delegate: delegate}
}

// AuthListener verifies the login and passcode of CONNECT frames and restricts the
// destinations of SEND and SUBSCRIBE frames to the patterns of the connected user.
type AuthListener struct {
	authenticator *Authenticator
	delegate      stompsession.CommandListener
	login         string
	account       *account
}

func (l *AuthListener) Connect(ctx context.Context, headers *frame.Header) error {
	login := headers.Get(frame.Login)
	acc, err := l.authenticator.authenticate(login, headers.Get(frame.Passcode))
	if err != nil {
		log.Log.Warnf("rejected login '%s'", login)
		return err
	}
	if err := l.delegate.Connect(ctx, headers); err != nil {
		return err
	}
	l.login = login
	l.account = acc
	return nil
}

func (l *AuthListener) checkAccess(destination string) error {
	if l.account != nil {
		for _, g := range l.account.destinations {
			if g.Match(destination) {
				return nil
			}
		}
	}
	log.Log.Debugf("user '%s' denied access to '%s'", l.login, destination)
	return accessDenied(destination)
}

func (l *AuthListener) Send(ctx context.Context, headers *frame.Header, body []byte) error {
	if err := l.checkAccess(headers.Get(frame.Destination)); err != nil {
		return err
	}
	return l.delegate.Send(ctx, headers, body)
}

func (l *AuthListener) Subscribe(ctx context.Context, headers *frame.Header) error {
	if err := l.checkAccess(headers.Get(frame.Destination)); err != nil {
		return err
	}
	return l.delegate.Subscribe(ctx, headers)
}

func (l *AuthListener) Unsubscribe(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Unsubscribe(ctx, headers)
}

func (l *AuthListener) Ack(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Ack(ctx, headers)
}

func (l *AuthListener) Nack(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Nack(ctx, headers)
}

func (l *AuthListener) Begin(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Begin(ctx, headers)
}

func (l *AuthListener) Commit(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Commit(ctx, headers)
}

func (l *AuthListener) Abort(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Abort(ctx, headers)
}

func (l *AuthListener) Disconnect(ctx context.Context, headers *frame.Header) error {
	return l.delegate.Disconnect(ctx, headers)
}
