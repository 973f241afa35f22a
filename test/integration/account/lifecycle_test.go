// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package account_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/account/accounttest"
	accountpg "github.com/keyward/keyward/internal/account/postgres"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/token"
	"github.com/keyward/keyward/pkg/errutil"
)

func signUp(email string) account.SignUpRequest {
	return account.SignUpRequest{
		Email:                 email,
		Password:              "P@ss1",
		ProtectedSymmetricKey: "psk",
		InitializationVector:  "iv",
		Language:              "EN",
		Hint:                  "hint",
	}
}

var _ = Describe("Account lifecycle on Postgres", func() {
	var (
		ctx      context.Context
		pg       *accountpg.Store
		notifier *accounttest.RecordingNotifier
		svc      *account.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateAccounts()

		hasher, err := credential.NewArgon2idHasher(credential.Params{
			SaltSize: 16, KeySize: 32, Iterations: 1, MemoryKB: 64, Parallelism: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		tokens, err := token.NewAuthority(token.Config{TTL: time.Minute, KeyBits: 1024})
		Expect(err).NotTo(HaveOccurred())

		pg = accountpg.NewStore(env.pool)
		notifier = &accounttest.RecordingNotifier{}
		svc, err = account.NewService(pg, hasher, tokens, notifier, account.Config{
			FrontendURL:            "https://app.example.com",
			EmailChangeExpiration:  10 * time.Minute,
			EmailChangeMaxAttempts: 3,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	pendingCode := func(email string) string {
		var code string
		err := env.pool.QueryRow(ctx, `SELECT pending_code FROM accounts WHERE email = $1`, email).Scan(&code)
		Expect(err).NotTo(HaveOccurred())
		return code
	}

	verify := func(email string) {
		Expect(svc.SignUp(ctx, signUp(email))).To(Succeed())
		Expect(svc.ConfirmEmail(ctx, email, pendingCode(email))).To(Succeed())
	}

	It("signs up, confirms and logs in", func() {
		verify("a@x.com")

		access, err := svc.Login(ctx, account.LoginRequest{Email: "a@x.com", Password: "P@ss1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(access.Token).NotTo(BeEmpty())
		Expect(access.Hint).To(Equal("hint"))

		exists, err := pg.ExistsByEmail(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})

	It("admits exactly one of many concurrent duplicate signups", func() {
		const n = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := svc.SignUp(ctx, signUp("race@x.com"))
				if err == nil {
					wins.Add(1)
					return
				}
				Expect(errutil.Code(err)).To(Equal(account.CodeAccountExists))
			}()
		}
		wg.Wait()

		Expect(wins.Load()).To(Equal(int32(1)))
		var count int
		Expect(env.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("persists attempt increments on a wrong change code", func() {
		verify("a@x.com")
		Expect(svc.ChangeEmail(ctx, "a@x.com", "b@x.com", "P@ss1")).To(Succeed())
		code, ok := notifier.Last(account.TemplateChangeEmailCode)
		Expect(ok).To(BeTrue())

		wrong := "000000"
		if code.Substitutions["code"] == wrong {
			wrong = "999999"
		}
		err := svc.ConfirmChangeEmail(ctx, account.ConfirmChangeEmailRequest{
			OldEmail: "a@x.com", NewEmail: "b@x.com", Password: "P@ss1", Code: wrong,
			NewPassword: "P@ss2",
		})
		Expect(errutil.Code(err)).To(Equal(account.CodeChangeCodeMismatch))

		var attempt int
		var newEmail string
		Expect(env.pool.QueryRow(ctx,
			`SELECT pending_attempt, pending_new_email FROM accounts WHERE email = $1`, "a@x.com").
			Scan(&attempt, &newEmail)).To(Succeed())
		Expect(attempt).To(Equal(1))
		Expect(newEmail).To(Equal("b@x.com"))

		Expect(svc.ConfirmChangeEmail(ctx, account.ConfirmChangeEmailRequest{
			OldEmail: "a@x.com", NewEmail: "b@x.com", Password: "P@ss1",
			Code: code.Substitutions["code"], NewPassword: "P@ss2",
		})).To(Succeed())

		_, err = svc.Login(ctx, account.LoginRequest{Email: "b@x.com", Password: "P@ss2"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("serializes concurrent logins on one account", func() {
		verify("a@x.com")

		var wg sync.WaitGroup
		for i := range 5 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := svc.Login(ctx, account.LoginRequest{
					Email: "a@x.com", Password: "P@ss1", IPAddress: fmt.Sprintf("10.0.0.%d", i),
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()
		Expect(notifier.Sent()).To(HaveLen(6))
	})

	It("frees the address after deletion", func() {
		verify("a@x.com")
		Expect(svc.DeleteAccount(ctx, "a@x.com", "P@ss1")).To(Succeed())

		exists, err := svc.CheckEmailExists(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
		Expect(svc.SignUp(ctx, signUp("a@x.com"))).To(Succeed())
	})
})
