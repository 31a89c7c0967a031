// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopfront/shopfront/internal/access"
	accesspg "github.com/shopfront/shopfront/internal/access/postgres"
	"github.com/shopfront/shopfront/internal/access/audit"
	"github.com/shopfront/shopfront/internal/admin"
	authpg "github.com/shopfront/shopfront/internal/auth/postgres"
	"github.com/shopfront/shopfront/internal/store"
)

var _ = Describe("Postgres storage", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

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

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, store.DefaultConnectOptions())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	Describe("migrations", func() {
		It("steps down and back up", func() {
			migrator, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(migrator.Close)

			latest, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(BeFalse())

			Expect(migrator.Steps(-1)).To(Succeed())
			v, _, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(latest - 1))

			pending, err := migrator.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{latest}))

			Expect(migrator.Up()).To(Succeed())
			v, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(latest))
		})
	})

	Describe("profiles", func() {
		It("stores roles and reports unknown subjects as not found", func() {
			repo := accesspg.NewProfileRepository(pool)

			previous, err := repo.SetRole(ctx, "u-int-1", access.RoleStaff)
			Expect(err).NotTo(HaveOccurred())
			Expect(previous).To(BeEmpty())

			previous, err = repo.SetRole(ctx, "u-int-1", access.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(previous).To(Equal("staff"))

			profile, err := repo.GetRoleForSubject(ctx, "u-int-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.Role).To(Equal("admin"))

			_, err = repo.GetRoleForSubject(ctx, "u-int-missing")
			Expect(errors.Is(err, access.ErrProfileNotFound)).To(BeTrue())
		})

		It("rejects roles outside the enumeration at the database", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO profiles (subject_id, role) VALUES ('u-int-bad', 'superuser')`)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("revocations", func() {
		It("revokes and purges expired tokens", func() {
			repo := authpg.NewRevocationRepository(pool)

			Expect(repo.Revoke(ctx, "hash-live", time.Now().Add(time.Hour))).To(Succeed())
			Expect(repo.Revoke(ctx, "hash-dead", time.Now().Add(-time.Hour))).To(Succeed())
			Expect(repo.Revoke(ctx, "hash-live", time.Now().Add(time.Hour))).To(Succeed(), "revoking twice is harmless")

			revoked, err := repo.IsRevoked(ctx, "hash-live")
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeTrue())

			n, err := repo.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			revoked, err = repo.IsRevoked(ctx, "hash-dead")
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeFalse())
		})
	})

	Describe("audit log", func() {
		It("appends entries and refuses updates", func() {
			writer := audit.NewPostgresWriter(pool)
			entry, err := audit.NewEntry("u-int-1", audit.ActionUpdate, "products", "p-1",
				map[string]any{"stock": 1}, map[string]any{"stock": 2})
			Expect(err).NotTo(HaveOccurred())
			recorder, err := audit.NewRecorder(writer, audit.WithWALPath(GinkgoT().TempDir()+"/wal.jsonl"))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(recorder.Close)

			Expect(recorder.Record(ctx, entry)).To(Succeed())

			var count int
			Expect(pool.QueryRow(ctx, `SELECT count(*) FROM audit_log WHERE target_id = 'p-1'`).Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))

			_, err = pool.Exec(ctx, `UPDATE audit_log SET actor_id = 'someone-else'`)
			Expect(err).To(MatchError(ContainSubstring("append-only")))
			_, err = pool.Exec(ctx, `DELETE FROM audit_log`)
			Expect(err).To(MatchError(ContainSubstring("append-only")))
		})
	})

	Describe("admin repository", func() {
		It("searches, sorts and paginates", func() {
			_, err := pool.Exec(ctx, `
				INSERT INTO products (id, name, price_cents, stock) VALUES
					('p-1', 'Boots', 5000, 3),
					('p-2', 'Boot polish', 700, 10),
					('p-3', '100% wool socks', 1200, 0)`)
			Expect(err).NotTo(HaveOccurred())

			repo := admin.NewRepository(pool)
			res, ok := admin.Lookup("products")
			Expect(ok).To(BeTrue())

			rows, total, err := repo.List(ctx, res, admin.ListQuery{
				Page: 1, Limit: 1, Search: "boot", SortBy: "name",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(rows).To(HaveLen(1))
			Expect(rows[0]["name"]).To(Equal("Boot polish"))

			rows, total, err = repo.List(ctx, res, admin.ListQuery{Page: 1, Limit: 10, Search: "%", SortBy: "created_at"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)), "LIKE wildcards in search text match literally")
			Expect(rows[0]["id"]).To(Equal("p-3"))
		})

		It("patches inside a transaction and returns both snapshots", func() {
			repo := admin.NewRepository(pool)
			res, _ := admin.Lookup("products")

			before, after, err := repo.Patch(ctx, res, "p-1", map[string]any{"stock": 7})
			Expect(err).NotTo(HaveOccurred())
			Expect(before["stock"]).To(BeEquivalentTo(3))
			Expect(after["stock"]).To(BeEquivalentTo(7))

			_, _, err = repo.Patch(ctx, res, "p-missing", map[string]any{"stock": 1})
			Expect(errors.Is(err, admin.ErrNotFound)).To(BeTrue())
		})
	})
})
