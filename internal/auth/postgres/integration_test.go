// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var repo *postgres.UserRepository

	BeforeEach(func() {
		truncate()
		repo = postgres.NewUserRepository(pool)
	})

	create := func(email string) *auth.User {
		user, err := auth.NewUser(email, "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(suiteCtx, user)).To(Succeed())
		return user
	}

	It("assigns ids and rejects duplicate emails", func() {
		first := create("a@b.com")
		Expect(first.ID).To(BeNumerically(">", 0))

		dup, err := auth.NewUser("a@b.com", "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(suiteCtx, dup)).To(MatchError(auth.ErrAlreadyExists))
	})

	It("admits exactly one of many concurrent registrations", func() {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				user, err := auth.NewUser("race@b.com", "$argon2id$hash")
				Expect(err).NotTo(HaveOccurred())
				if repo.Create(suiteCtx, user) == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(created).To(Equal(1))
	})

	It("reports misses as not found", func() {
		_, err := repo.GetByEmail(suiteCtx, "ghost@b.com")
		Expect(err).To(MatchError(auth.ErrNotFound))

		users, err := repo.FindByEmail(suiteCtx, "ghost@b.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(BeEmpty())
	})

	It("consumes a reset token once", func() {
		user := create("a@b.com")
		Expect(repo.SetResetToken(suiteCtx, user.ID, "reset-1")).To(Succeed())

		holder, err := repo.GetByResetToken(suiteCtx, "reset-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(holder.ID).To(Equal(user.ID))

		Expect(repo.ConsumeResetToken(suiteCtx, "reset-1", "$argon2id$new")).To(Succeed())
		Expect(repo.ConsumeResetToken(suiteCtx, "reset-1", "$argon2id$other")).To(MatchError(auth.ErrNotFound))

		updated, err := repo.GetByID(suiteCtx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.HashedPassword).To(Equal("$argon2id$new"))
		Expect(updated.ResetToken).To(BeNil())
	})
})

var _ = Describe("SessionStore", func() {
	var (
		users    *postgres.UserRepository
		sessions *postgres.SessionStore
		user     *auth.User
	)

	BeforeEach(func() {
		truncate()
		users = postgres.NewUserRepository(pool)
		sessions = postgres.NewSessionStore(pool)

		var err error
		user, err = auth.NewUser("a@b.com", "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(suiteCtx, user)).To(Succeed())
	})

	It("replaces the previous token", func() {
		Expect(sessions.Set(suiteCtx, "tok-1", user.ID)).To(Succeed())
		Expect(sessions.Set(suiteCtx, "tok-2", user.ID)).To(Succeed())

		_, err := sessions.Get(suiteCtx, "tok-1")
		Expect(err).To(MatchError(auth.ErrNotFound))

		id, err := sessions.Get(suiteCtx, "tok-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(user.ID))
	})

	It("deletes idempotently", func() {
		Expect(sessions.Set(suiteCtx, "tok-1", user.ID)).To(Succeed())
		Expect(sessions.Delete(suiteCtx, user.ID)).To(Succeed())
		Expect(sessions.Delete(suiteCtx, user.ID)).To(Succeed())

		_, err := sessions.Get(suiteCtx, "tok-1")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
