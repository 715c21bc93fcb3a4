package hmsAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/hmsAuth/principal"
	"go.uber.org/zap"
)

// sequenceID formats prefix followed by n zero padded to width digits.
func sequenceID(prefix string, n, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// createTenantWithID assigns the next tenant id and inserts t. The id is
// count+1; a concurrent registration taking the same id moves to the next
// candidate, up to Tenant.MaxRetries times.
func (e *Engine) createTenantWithID(ctx context.Context, t *principal.Tenant) error {
	var lastErr error
	for attempt := 0; attempt < e.config.Tenant.MaxRetries; attempt++ {
		count, err := e.store.CountTenants(ctx)
		if err != nil {
			return err
		}
		t.ID = sequenceID(e.config.Tenant.IDPrefix, count+1+attempt, e.config.Tenant.IDWidth)

		err = e.store.CreateTenant(ctx, t)
		if err == nil {
			return nil
		}
		if field, ok := principal.ConflictField(err); ok && field == principal.FieldTenantID {
			lastErr = err
			e.logger.Debug("tenant id taken, retrying", zap.String("tenant_id", t.ID), zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return fmt.Errorf("tenant id retries exhausted: %w", lastErr)
}

// createStaffWithEmployeeID assigns the next employee id for the member's
// tenant and role prefix and inserts it. The id follows the highest one
// issued under the prefix, so ids kept across role changes or freed by
// deletions never block allocation. A collision with a concurrent create
// re-reads the highest id, up to Staff.MaxRetries times.
func (e *Engine) createStaffWithEmployeeID(ctx context.Context, m *principal.StaffMember) error {
	prefix, ok := m.Role.EmployeePrefix()
	if !ok {
		return errors.New("role has no employee prefix")
	}

	var lastErr error
	for attempt := 0; attempt < e.config.Staff.MaxRetries; attempt++ {
		highest, err := e.store.MaxEmployeeSeq(ctx, m.TenantID, prefix)
		if err != nil {
			return err
		}
		m.EmployeeID = sequenceID(prefix, highest+1, e.config.Staff.EmployeeIDWidth)

		err = e.store.CreateStaff(ctx, m)
		if err == nil {
			return nil
		}
		if field, ok := principal.ConflictField(err); ok && field == principal.FieldEmployeeID {
			lastErr = err
			e.logger.Debug("employee id taken, retrying", zap.String("employee_id", m.EmployeeID), zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return fmt.Errorf("employee id retries exhausted: %w", lastErr)
}
