// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package guard_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/access/accesstest"
	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/authtest"
	"github.com/shopfront/shopfront/internal/guard"
)

func token(subject string, extra map[string]any) string {
	return authtest.SignToken(GinkgoT(), authtest.TokenOptions{Subject: subject, Extra: extra})
}

var _ = Describe("Guard", func() {
	var (
		repo        *accesstest.ProfileRepository
		revocations *authtest.RevocationList
		service     *auth.Service
		g           *guard.Guard
		router      chi.Router
		mutations   int
	)

	do := func(method, path, bearer, body string) *httptest.ResponseRecorder {
		var rdr io.Reader
		if body != "" {
			rdr = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, rdr)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorOf := func(rec *httptest.ResponseRecorder) string {
		var body guard.ErrorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error
	}

	BeforeEach(func() {
		repo = accesstest.NewProfileRepository()
		revocations = authtest.NewRevocationList()
		mutations = 0

		verifier, err := auth.NewVerifier(authtest.Secret)
		Expect(err).NotTo(HaveOccurred())
		service, err = auth.NewService(verifier, revocations)
		Expect(err).NotTo(HaveOccurred())
		resolver, err := access.NewResolver(repo, nil)
		Expect(err).NotTo(HaveOccurred())
		g, err = guard.New(service, resolver, nil)
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		router.With(g.Require(access.RoleAdmin)).Patch("/api/admin/profiles", func(w http.ResponseWriter, r *http.Request) {
			mutations++
			p, ok := guard.PrincipalFromContext(r.Context())
			Expect(ok).To(BeTrue())
			guard.WriteJSON(w, http.StatusOK, p)
		})
		router.With(g.Require(access.RoleManager)).Get("/api/admin/reports", func(w http.ResponseWriter, _ *http.Request) {
			guard.WriteJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
		})
	})

	Describe("construction", func() {
		It("requires its collaborators", func() {
			_, err := guard.New(nil, nil, nil)
			Expect(err).To(HaveOccurred())
			_, err = guard.New(service, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("without a session", func() {
		It("responds 401 and never runs the handler", func() {
			rec := do(http.MethodPatch, "/api/admin/profiles", "", `{"id":"u-2","role":"admin"}`)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorOf(rec)).To(Equal("unauthorized"))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(mutations).To(BeZero())
		})

		It("responds 401 for a token signed with another key", func() {
			forged := authtest.SignToken(GinkgoT(), authtest.TokenOptions{Subject: "u-1", Secret: []byte("attacker")})
			repo.Put("u-1", access.RoleAdmin)
			Expect(do(http.MethodPatch, "/api/admin/profiles", forged, "").Code).To(Equal(http.StatusUnauthorized))
		})

		It("responds 401 for an expired token", func() {
			expired := authtest.SignToken(GinkgoT(), authtest.TokenOptions{
				Subject:   "u-1",
				ExpiresAt: time.Now().Add(-time.Minute),
			})
			repo.Put("u-1", access.RoleAdmin)
			Expect(do(http.MethodPatch, "/api/admin/profiles", expired, "").Code).To(Equal(http.StatusUnauthorized))
		})

		It("responds 401 for a signed-out token", func() {
			repo.Put("u-1", access.RoleAdmin)
			tok := token("u-1", nil)
			session, err := service.ValidateToken(context.Background(), tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(service.SignOut(context.Background(), session)).To(Succeed())

			Expect(do(http.MethodPatch, "/api/admin/profiles", tok, "").Code).To(Equal(http.StatusUnauthorized))
		})

		It("fails closed with 401 when the revocation list is unreachable", func() {
			repo.Put("u-1", access.RoleAdmin)
			revocations.Err = errors.New("connection refused")
			Expect(do(http.MethodPatch, "/api/admin/profiles", token("u-1", nil), "").Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Context("with a valid session", func() {
		It("rejects a forged role claim in the body with 403", func() {
			repo.Put("u-1", access.RoleStaff)
			rec := do(http.MethodPatch, "/api/admin/profiles", token("u-1", nil), `{"id":"u-1","role":"admin"}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorOf(rec)).To(Equal("forbidden"))
			Expect(mutations).To(BeZero())
		})

		It("ignores role claims embedded in the token", func() {
			repo.Put("u-1", access.RoleStaff)
			rec := do(http.MethodPatch, "/api/admin/profiles", token("u-1", map[string]any{"role": "admin"}), "")
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("ignores role headers", func() {
			repo.Put("u-1", access.RoleStaff)
			req := httptest.NewRequest(http.MethodPatch, "/api/admin/profiles", nil)
			req.Header.Set("Authorization", "Bearer "+token("u-1", nil))
			req.Header.Set("X-Role", "admin")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("responds 403 when the subject has no profile", func() {
			Expect(do(http.MethodGet, "/api/admin/reports", token("ghost", nil), "").Code).To(Equal(http.StatusForbidden))
		})

		It("responds 403 when the profile store is unavailable", func() {
			repo.Put("u-1", access.RoleAdmin)
			repo.SetError(access.ErrUnavailable)
			Expect(do(http.MethodGet, "/api/admin/reports", token("u-1", nil), "").Code).To(Equal(http.StatusForbidden))
		})

		It("lets a sufficient role through with the resolved principal", func() {
			repo.Put("u-9", access.RoleAdmin)
			rec := do(http.MethodPatch, "/api/admin/profiles", token("u-9", nil), `{}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mutations).To(Equal(1))

			var p access.Principal
			Expect(json.Unmarshal(rec.Body.Bytes(), &p)).To(Succeed())
			Expect(p.Role).To(Equal(access.RoleAdmin))
			Expect(p.Identity.SubjectID).To(Equal("u-9"))
		})

		It("accepts the session cookie", func() {
			repo.Put("u-3", access.RoleManager)
			req := httptest.NewRequest(http.MethodGet, "/api/admin/reports", nil)
			req.AddCookie(&http.Cookie{Name: service.CookieName(), Value: token("u-3", nil)})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("promotion without re-authentication", func() {
		It("applies on the next request", func() {
			repo.Put("u-1", access.RoleStaff)
			tok := token("u-1", nil)

			Expect(do(http.MethodGet, "/api/admin/reports", tok, "").Code).To(Equal(http.StatusForbidden))

			repo.Put("u-1", access.RoleManager)
			Expect(do(http.MethodGet, "/api/admin/reports", tok, "").Code).To(Equal(http.StatusOK))

			repo.Put("u-1", access.RoleStaff)
			Expect(do(http.MethodGet, "/api/admin/reports", tok, "").Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("Check", func() {
		It("returns a denial carrying the policy violation", func() {
			repo.Put("u-1", access.RoleStaff)
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Authorization", "Bearer "+token("u-1", nil))

			_, denial := g.Check(req, access.RoleAdmin)
			Expect(denial).NotTo(BeNil())
			Expect(denial.Status).To(Equal(http.StatusForbidden))
			Expect(denial.Error()).To(ContainSubstring("staff is below admin"))
		})
	})
})
