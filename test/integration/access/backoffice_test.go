// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

//go:build integration

package access_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopfront/shopfront/internal/access"
	accesspg "github.com/shopfront/shopfront/internal/access/postgres"
	"github.com/shopfront/shopfront/internal/access/audit"
	"github.com/shopfront/shopfront/internal/admin"
	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/authtest"
	authpg "github.com/shopfront/shopfront/internal/auth/postgres"
	"github.com/shopfront/shopfront/internal/guard"
	"github.com/shopfront/shopfront/internal/server"
	"github.com/shopfront/shopfront/internal/store"
)

var _ = Describe("Back office API", Ordered, func() {
	const goroutines = 50

	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		pool      *pgxpool.Pool
		api       *httptest.Server
		profiles  *accesspg.ProfileRepository
	)

	// call issues method on path as subject, or anonymously when subject is
	// "", and returns the status and body.
	call := func(method, path, subject, body string) (int, []byte) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, api.URL+path, r)
		Expect(err).NotTo(HaveOccurred())
		if subject != "" {
			req.Header.Set("Authorization", "Bearer "+authtest.SignToken(GinkgoT(), authtest.TokenOptions{Subject: subject}))
		}
		resp, err := api.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, data
	}

	auditCount := func(targetID string) int {
		var n int
		Expect(pool.QueryRow(ctx,
			`SELECT count(*) FROM audit_log WHERE target_id = $1`, targetID).Scan(&n)).To(Succeed())
		return n
	}

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("shopfront_test"),
			postgres.WithUsername("shopfront"),
			postgres.WithPassword("shopfront"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, store.DefaultConnectOptions())
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		verifier, err := auth.NewVerifier(authtest.Secret)
		Expect(err).NotTo(HaveOccurred())
		sessions, err := auth.NewService(verifier, authpg.NewRevocationRepository(pool), auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		profiles = accesspg.NewProfileRepository(pool)
		resolver, err := access.NewResolver(profiles, logger)
		Expect(err).NotTo(HaveOccurred())
		g, err := guard.New(sessions, resolver, logger)
		Expect(err).NotTo(HaveOccurred())

		recorder, err := audit.NewRecorder(audit.NewPostgresWriter(pool),
			audit.WithLogger(logger),
			audit.WithWALPath(filepath.Join(GinkgoT().TempDir(), "audit-wal.jsonl")))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(recorder.Close)

		adminHandler, err := admin.NewHandler(admin.NewRepository(pool), g, recorder, logger)
		Expect(err).NotTo(HaveOccurred())
		router, err := server.NewRouter(server.RouterOptions{
			Sessions: sessions,
			Guard:    g,
			Profiles: profiles,
			Admin:    adminHandler.Routes(),
			Logger:   logger,
		})
		Expect(err).NotTo(HaveOccurred())
		api = httptest.NewServer(router)

		for subject, role := range map[string]access.Role{
			"u-staff":   access.RoleStaff,
			"u-manager": access.RoleManager,
			"u-admin":   access.RoleAdmin,
			"u-promote": access.RoleStaff,
		} {
			_, err := profiles.SetRole(ctx, subject, role)
			Expect(err).NotTo(HaveOccurred())
		}
		_, err = pool.Exec(ctx, `INSERT INTO orders (id, customer_email, total_cents) VALUES
			('o-1', 'ada@example.test', 4200), ('o-2', 'bob@example.test', 1999)`)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if api != nil {
			api.Close()
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	Describe("route guards", func() {
		DescribeTable("listing resources",
			func(subject, path string, want int) {
				code, _ := call(http.MethodGet, path, subject, "")
				Expect(code).To(Equal(want))
			},
			Entry("anonymous", "", "/api/admin/orders", http.StatusUnauthorized),
			Entry("no profile", "u-ghost", "/api/admin/orders", http.StatusForbidden),
			Entry("staff reads orders", "u-staff", "/api/admin/orders", http.StatusOK),
			Entry("staff cannot read profiles", "u-staff", "/api/admin/profiles", http.StatusForbidden),
			Entry("manager reads profiles", "u-manager", "/api/admin/profiles", http.StatusOK),
			Entry("admin reads profiles", "u-admin", "/api/admin/profiles", http.StatusOK),
		)

		It("reports the caller's own role from the database", func() {
			code, data := call(http.MethodGet, "/api/profile", "u-manager", "")
			Expect(code).To(Equal(http.StatusOK))
			var body map[string]any
			Expect(json.Unmarshal(data, &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("role", "manager"))
		})

		It("applies a promotion on the very next request", func() {
			code, _ := call(http.MethodGet, "/api/admin/profiles", "u-promote", "")
			Expect(code).To(Equal(http.StatusForbidden))

			_, err := profiles.SetRole(ctx, "u-promote", access.RoleManager)
			Expect(err).NotTo(HaveOccurred())

			code, _ = call(http.MethodGet, "/api/admin/profiles", "u-promote", "")
			Expect(code).To(Equal(http.StatusOK))
		})

		It("answers every concurrent caller consistently", func() {
			var wg sync.WaitGroup
			codes := make([]int, goroutines)
			for i := range goroutines {
				subject := "u-staff"
				if i%2 == 1 {
					subject = "u-ghost"
				}
				wg.Add(1)
				go func(idx int, subject string) {
					defer GinkgoRecover()
					defer wg.Done()
					codes[idx], _ = call(http.MethodGet, "/api/admin/orders", subject, "")
				}(i, subject)
			}
			wg.Wait()

			for i, code := range codes {
				if i%2 == 0 {
					Expect(code).To(Equal(http.StatusOK), "caller %d", i)
				} else {
					Expect(code).To(Equal(http.StatusForbidden), "caller %d", i)
				}
			}
		})
	})

	Describe("admin mutations", func() {
		It("lets a manager ship an order and records one audit entry", func() {
			before := auditCount("o-1")
			code, _ := call(http.MethodPatch, "/api/admin/orders", "u-manager", `{"id":"o-1","status":"shipped"}`)
			Expect(code).To(Equal(http.StatusOK))
			Expect(auditCount("o-1")).To(Equal(before + 1))

			var status string
			Expect(pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = 'o-1'`).Scan(&status)).To(Succeed())
			Expect(status).To(Equal("shipped"))
		})

		It("refuses a staff mutation without touching the row or the log", func() {
			before := auditCount("o-2")
			code, _ := call(http.MethodPatch, "/api/admin/orders", "u-staff", `{"id":"o-2","status":"cancelled"}`)
			Expect(code).To(Equal(http.StatusForbidden))
			Expect(auditCount("o-2")).To(Equal(before))

			var status string
			Expect(pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = 'o-2'`).Scan(&status)).To(Succeed())
			Expect(status).To(Equal("pending"))
		})

		It("lets an admin change someone else's role but not their own", func() {
			code, _ := call(http.MethodPatch, "/api/admin/profiles", "u-admin", `{"id":"u-staff","role":"manager"}`)
			Expect(code).To(Equal(http.StatusOK))

			var action string
			Expect(pool.QueryRow(ctx,
				`SELECT action FROM audit_log WHERE target_id = 'u-staff' ORDER BY created_at DESC LIMIT 1`).
				Scan(&action)).To(Succeed())
			Expect(action).To(Equal(audit.ActionRoleChange))

			code, _ = call(http.MethodPatch, "/api/admin/profiles", "u-admin", `{"id":"u-admin","role":"staff"}`)
			Expect(code).To(Equal(http.StatusBadRequest))
			p, err := profiles.GetRoleForSubject(ctx, "u-admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Role).To(Equal("admin"))
		})

		It("stores a re-sent audit entry once", func() {
			entry, err := audit.NewEntry("u-manager", audit.ActionUpdate, "orders", "o-resent",
				map[string]any{"status": "pending"}, map[string]any{"status": "shipped"})
			Expect(err).NotTo(HaveOccurred())
			entry.ID = ulid.Make()
			entry.Timestamp = time.Now().UTC()

			writer := audit.NewPostgresWriter(pool)
			Expect(writer.Write(ctx, entry)).To(Succeed())
			Expect(writer.Write(ctx, entry)).To(Succeed())
			Expect(auditCount("o-resent")).To(Equal(1))
		})
	})

	Describe("sign-out", func() {
		It("revokes the token for every later request", func() {
			token := authtest.SignToken(GinkgoT(), authtest.TokenOptions{Subject: "u-manager"})
			do := func(method, path string) int {
				req, err := http.NewRequestWithContext(ctx, method, api.URL+path, nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Bearer "+token)
				resp, err := api.Client().Do(req)
				Expect(err).NotTo(HaveOccurred())
				_ = resp.Body.Close()
				return resp.StatusCode
			}

			Expect(do(http.MethodGet, "/api/admin/orders")).To(Equal(http.StatusOK))
			Expect(do(http.MethodPost, "/api/session/signout")).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodGet, "/api/admin/orders")).To(Equal(http.StatusUnauthorized))
			Expect(do(http.MethodGet, "/api/session")).To(Equal(http.StatusUnauthorized))
		})
	})
})
