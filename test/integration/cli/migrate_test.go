// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package cli_test

import (
	"context"
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func keyward(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	cmd.Dir = "../../../cmd/keyward"
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+env.connStr, "XDG_CONFIG_HOME="+GinkgoT().TempDir())
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func tableExists(ctx context.Context, name string) bool {
	var exists bool
	err := env.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrate Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
	})

	It("reports every migration pending on an empty database", func() {
		out, err := keyward(ctx, "migrate", "version")
		Expect(err).NotTo(HaveOccurred(), "version failed: %s", out)
		Expect(out).To(ContainSubstring("version: 0 (none)"))
		Expect(out).To(ContainSubstring("pending: 1, 2"))
	})

	It("applies all migrations and is idempotent", func() {
		out, err := keyward(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "first up failed: %s", out)
		Expect(out).To(ContainSubstring("version: 2 (000002_account_email_change)"))
		Expect(out).To(ContainSubstring("pending: none"))
		Expect(tableExists(ctx, "accounts")).To(BeTrue())

		out, err = keyward(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "second up failed: %s", out)
		Expect(out).To(ContainSubstring("version: 2"))
	})

	It("reverts one step and then everything", func() {
		out, err := keyward(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "up failed: %s", out)

		out, err = keyward(ctx, "migrate", "down", "1")
		Expect(err).NotTo(HaveOccurred(), "down 1 failed: %s", out)
		Expect(out).To(ContainSubstring("version: 1 (000001_create_accounts)"))
		Expect(out).To(ContainSubstring("pending: 2"))

		out, err = keyward(ctx, "migrate", "down")
		Expect(err).NotTo(HaveOccurred(), "down failed: %s", out)
		Expect(out).To(ContainSubstring("pending: 1, 2"))
		Expect(tableExists(ctx, "accounts")).To(BeFalse())
	})

	It("rejects a non-numeric force version", func() {
		out, err := keyward(ctx, "migrate", "force", "latest")
		Expect(err).To(HaveOccurred())
		Expect(out).To(ContainSubstring("Error"))
	})
})
