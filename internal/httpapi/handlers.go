package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/middleware"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
)

type handler struct {
	engine *hmsAuth.Engine
	logger *zap.Logger
}

type registerRequest struct {
	HospitalName       string `json:"hospitalName"`
	HospitalEmail      string `json:"hospitalEmail"`
	HospitalPhone      string `json:"hospitalPhone"`
	Address            string `json:"address"`
	RegistrationNumber string `json:"registrationNumber"`
	LicenseNumber      string `json:"licenseNumber"`
	HospitalNumber     string `json:"hospitalNumber"`
	AdminName          string `json:"adminName"`
	AdminEmail         string `json:"adminEmail"`
	AdminPhone         string `json:"adminPhone"`
	AdminPassword      string `json:"adminPassword"`
}

type registerResponse struct {
	TenantID              string    `json:"tenantId"`
	AdminID               string    `json:"adminId"`
	VerificationEmail     string    `json:"verificationEmail"`
	VerificationExpiresAt time.Time `json:"verificationExpiresAt"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type createStaffRequest struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Department  string         `json:"department"`
	Role        string         `json:"role"`
	Permissions permission.Set `json:"permissions"`
}

type updateStaffRequest struct {
	Name        *string         `json:"name"`
	Phone       *string         `json:"phone"`
	Department  *string         `json:"department"`
	Role        *string         `json:"role"`
	Permissions *permission.Set `json:"permissions"`
	IsActive    *bool           `json:"isActive"`
}

type principalView struct {
	Kind        string         `json:"kind"`
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	EmployeeID  string         `json:"employeeId,omitempty"`
	Permissions permission.Set `json:"permissions"`
}

type sessionResponse struct {
	Token     string          `json:"token,omitempty"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Principal principalView   `json:"principal"`
	Tenant    *hmsAuth.Tenant `json:"tenant,omitempty"`
}

func viewOf(p hmsAuth.Principal) principalView {
	v := principalView{
		Kind:        string(p.Kind),
		ID:          p.ID(),
		TenantID:    p.TenantID(),
		Email:       p.Email(),
		Role:        string(p.Role()),
		Permissions: p.Permissions(),
	}
	switch {
	case p.Admin != nil:
		v.Name = p.Admin.Name
	case p.Staff != nil:
		v.Name = p.Staff.Name
		v.EmployeeID = p.Staff.EmployeeID
	}
	return v
}

func loginResponse(res *hmsAuth.LoginResult) sessionResponse {
	return sessionResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Principal: viewOf(res.Principal),
		Tenant:    res.Tenant,
	}
}

// decode reads one JSON object from the body, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body_too_large", RequestID: RequestIDFromContext(r.Context())})
		case errors.Is(err, io.EOF):
			badRequest(w, r, "request body required")
		default:
			badRequest(w, r, "malformed JSON body")
		}
		return false
	}
	return true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, hmsAuth.ErrUnexpected) {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, r, err)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, r, hmsAuth.ErrEngineNotReady)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.RegisterTenant(middleware.WithRequestMetadata(r), hmsAuth.RegisterTenantRequest{
		HospitalName:       req.HospitalName,
		HospitalEmail:      req.HospitalEmail,
		HospitalPhone:      req.HospitalPhone,
		Address:            req.Address,
		RegistrationNumber: req.RegistrationNumber,
		LicenseNumber:      req.LicenseNumber,
		HospitalNumber:     req.HospitalNumber,
		AdminName:          req.AdminName,
		AdminEmail:         req.AdminEmail,
		AdminPhone:         req.AdminPhone,
		AdminPassword:      req.AdminPassword,
	})
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		TenantID:              res.TenantID,
		AdminID:               res.AdminID,
		VerificationEmail:     res.VerificationEmail,
		VerificationExpiresAt: res.VerificationExpiresAt,
	})
}

func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.VerifyEmail(middleware.WithRequestMetadata(r), req.Email, req.Code)
	if err != nil {
		h.fail(w, r, "verify_email", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.ResendVerification(middleware.WithRequestMetadata(r), req.Email); err != nil {
		h.fail(w, r, "resend_verification", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) loginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "login_admin", h.engine.LoginAdmin)
}

func (h *handler) loginStaff(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "login_staff", h.engine.LoginStaff)
}

func (h *handler) login(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, email, password string) (*hmsAuth.LoginResult, error),
) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := fn(middleware.WithRequestMetadata(r), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	var exp time.Time
	if sess.Claims != nil && sess.Claims.ExpiresAt != nil {
		exp = sess.Claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ExpiresAt: exp,
		Principal: viewOf(sess.Principal),
		Tenant:    sess.Tenant,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := h.engine.Logout(middleware.WithRequestMetadata(r), token); err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, "change_password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize answers 204 when the caller may perform action on module,
// optionally inside the tenant named by the tenant query parameter.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	module, action := q.Get("module"), q.Get("action")
	if module == "" || action == "" {
		badRequest(w, r, "module and action are required")
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())

	var err error
	if tenant := q.Get("tenant"); tenant != "" {
		err = h.engine.AuthorizeInTenant(p, tenant, module, action)
	} else {
		err = h.engine.Authorize(p, module, action)
	}
	if err != nil {
		h.fail(w, r, "authorize", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) roleTemplate(w http.ResponseWriter, r *http.Request) {
	role := principal.Role(mux.Vars(r)["role"])
	set, ok := h.engine.RoleTemplate(role)
	if !ok {
		writeError(w, r, hmsAuth.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": role, "permissions": set})
}

func (h *handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if !decode(w, r, &req) {
		return
	}
	actor, _ := middleware.PrincipalFromContext(r.Context())
	m, err := h.engine.CreateStaff(middleware.WithRequestMetadata(r), actor, hmsAuth.CreateStaffRequest{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Department:  req.Department,
		Role:        principal.Role(req.Role),
		Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(w, r, "create_staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handler) updateStaff(w http.ResponseWriter, r *http.Request) {
	var req updateStaffRequest
	if !decode(w, r, &req) {
		return
	}
	upd := hmsAuth.UpdateStaffRequest{
		Name:        req.Name,
		Phone:       req.Phone,
		Department:  req.Department,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	}
	if req.Role != nil {
		role := principal.Role(*req.Role)
		upd.Role = &role
	}

	actor, _ := middleware.PrincipalFromContext(r.Context())
	m, err := h.engine.UpdateStaff(middleware.WithRequestMetadata(r), actor, mux.Vars(r)["id"], upd)
	if err != nil {
		h.fail(w, r, "update_staff", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.DeleteStaff(middleware.WithRequestMetadata(r), actor, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, "delete_staff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) resetStaffPassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.ResetStaffPassword(middleware.WithRequestMetadata(r), actor, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, "reset_staff_password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
