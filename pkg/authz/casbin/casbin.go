// Package casbin provides Casbin-based role authorization backed by the
// relational store through the GORM adapter.
package casbin

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/kart-io/logger"
	"gorm.io/gorm"
)

// DefaultModel is the RBAC model used when no model file is configured.
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Authorizer checks whether a subject may perform an action on a resource.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewGormEnforcer creates a synced enforcer whose policies live in the
// casbin_rule table of db. An empty modelPath selects DefaultModel.
func NewGormEnforcer(db *gorm.DB, modelPath string) (*casbin.SyncedEnforcer, error) {
	a, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm adapter: %w", err)
	}

	var e *casbin.SyncedEnforcer
	if modelPath == "" {
		m, err := model.NewModelFromString(DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("failed to parse default model: %w", err)
		}
		e, err = casbin.NewSyncedEnforcer(m, a)
		if err != nil {
			return nil, fmt.Errorf("failed to create enforcer: %w", err)
		}
	} else {
		e, err = casbin.NewSyncedEnforcer(modelPath, a)
		if err != nil {
			return nil, fmt.Errorf("failed to create enforcer: %w", err)
		}
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return e, nil
}

// New creates an Authorizer backed by db.
func New(db *gorm.DB, modelPath string) (*Authorizer, error) {
	e, err := NewGormEnforcer(db, modelPath)
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: e}, nil
}

// Authorize reports whether subject may perform action on resource.
func (a *Authorizer) Authorize(_ context.Context, subject, resource, action string) (bool, error) {
	if subject == "" {
		return false, nil
	}
	ok, err := a.enforcer.Enforce(subject, resource, action)
	if err != nil {
		return false, fmt.Errorf("enforce %s/%s: %w", resource, action, err)
	}
	return ok, nil
}

// Grant allows role to perform each action on resource. Existing rules are kept.
func (a *Authorizer) Grant(role, resource string, actions ...string) error {
	for _, act := range actions {
		if _, err := a.enforcer.AddPolicy(role, resource, act); err != nil {
			return fmt.Errorf("grant %s %s/%s: %w", role, resource, act, err)
		}
	}
	return nil
}

// AssignRole adds role to each subject.
func (a *Authorizer) AssignRole(role string, subjects ...string) error {
	for _, sub := range subjects {
		added, err := a.enforcer.AddRoleForUser(sub, role)
		if err != nil {
			return fmt.Errorf("assign %s to %s: %w", role, sub, err)
		}
		if added {
			logger.Infow("Role assigned", "role", role, "subject", sub)
		}
	}
	return nil
}

// RevokeRole removes role from subject.
func (a *Authorizer) RevokeRole(role, subject string) error {
	if _, err := a.enforcer.DeleteRoleForUser(subject, role); err != nil {
		return fmt.Errorf("revoke %s from %s: %w", role, subject, err)
	}
	return nil
}

// HasRole reports whether subject holds role.
func (a *Authorizer) HasRole(subject, role string) (bool, error) {
	return a.enforcer.HasRoleForUser(subject, role)
}
