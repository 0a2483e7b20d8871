package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/leasebook/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectRecurringInvoice = "recurring_invoice"
	ObjectInvoice          = "invoice"
)

const (
	ActionRecurringInvoiceView     = "recurring_invoice.view"
	ActionRecurringInvoiceCreate   = "recurring_invoice.create"
	ActionRecurringInvoiceUpdate   = "recurring_invoice.update"
	ActionRecurringInvoicePause    = "recurring_invoice.pause"
	ActionRecurringInvoiceResume   = "recurring_invoice.resume"
	ActionRecurringInvoiceGenerate = "recurring_invoice.generate"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceCreate = "invoice.create"
)

const (
	ActorSystem = "system"

	roleSystem = "role:system"
	roleOwner  = "role:owner"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, ownerID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	parsedOwnerID, err := snowflake.ParseString(strings.TrimSpace(ownerID))
	if err != nil || parsedOwnerID == 0 {
		return ErrInvalidOwner
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, actorType, actorID, err := resolveActor(actor, parsedOwnerID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, parsedOwnerID, object, action)
		return err
	}

	domain := "owner:" + parsedOwnerID.String()
	if err := s.ensureGrouping(actor, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, parsedOwnerID, object, action)
		return ErrForbidden
	}
	return nil
}

// resolveActor maps the caller onto a role inside the owner's domain.
// A landlord only ever holds role:owner over their own records.
func resolveActor(actor string, ownerID snowflake.ID) (string, string, *string, error) {
	if actor == ActorSystem {
		return roleSystem, ActorSystem, nil, nil
	}
	if raw, ok := strings.CutPrefix(actor, "user:"); ok {
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			return "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		if userID != ownerID {
			return "", "user", &userIDStr, ErrForbidden
		}
		return roleOwner, "user", &userIDStr, nil
	}
	return "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, ownerID snowflake.ID, object string, action string) {
	s.log.Warn("authorization denied",
		zap.String("actor_type", actorType),
		zap.String("owner_id", ownerID.String()),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &ownerID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	if actorType == "user" && actorID != nil {
		return fmt.Sprintf("user:%s", *actorID)
	}
	return actorType
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoiceView},
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoiceCreate},
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoiceUpdate},
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoicePause},
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoiceResume},
		{roleOwner, ObjectRecurringInvoice, ActionRecurringInvoiceGenerate},
		{roleOwner, ObjectInvoice, ActionInvoiceView},

		// The sweep acts for every landlord but only ever materializes invoices.
		{roleSystem, ObjectRecurringInvoice, ActionRecurringInvoiceGenerate},
		{roleSystem, ObjectInvoice, ActionInvoiceCreate},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
