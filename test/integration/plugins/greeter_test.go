// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

//go:build integration

package plugins_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wizardmod/wizard/internal/builtin"
	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/internal/plugin/hostfunc"
	pluginlua "github.com/wizardmod/wizard/internal/plugin/lua"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// shippedPlugin copies plugins/<name> from the repository into dir.
func shippedPlugin(dir, name string) {
	src := filepath.Join("..", "..", "..", "plugins", name)
	entries, err := os.ReadDir(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(os.MkdirAll(filepath.Join(dir, name), 0o750)).To(Succeed())
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name())) //nolint:gosec // fixed repository path
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(dir, name, e.Name()), data, 0o600)).To(Succeed())
	}
}

var _ = Describe("Greeter plugin", func() {
	var (
		manager *plugin.Manager
		report  *plugin.LoadReport
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		shippedPlugin(dir, "greeter")

		enforcer := capability.NewEnforcer()
		hf := hostfunc.New(env.kv, enforcer, hostfunc.WithLogger(quietLogger()))
		manager = plugin.NewManager(dir,
			plugin.WithLogger(quietLogger()),
			plugin.WithEnforcer(enforcer),
			plugin.WithLuaHost(pluginlua.NewHost(hf, pluginlua.WithLogger(quietLogger()))),
		)

		var err error
		report, err = manager.LoadAll(env.ctx, builtin.Modules(builtin.Options{BannedAddresses: []string{"10.0.0.0/8"}})...)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(manager.Close(env.ctx)).To(Succeed())
		Expect(env.kv.Delete(env.ctx, "greeter", "visits:alice")).To(Succeed())
	})

	It("loads after the banlist it optionally depends on", func() {
		Expect(report.Failures).To(BeEmpty())
		Expect(report.Loaded).To(Equal([]string{"banlist", "greeter"}))
	})

	It("counts visits in the plugin store", func() {
		d := manager.Dispatcher()
		for range 3 {
			out := d.ClientPutInServer(env.ctx, 1, "alice")
			Expect(out.Proceed()).To(BeTrue())
		}

		visits, err := env.kv.Get(env.ctx, "greeter", "visits:alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(visits)).To(Equal("3"))
	})

	It("handles its own command", func() {
		out := manager.Dispatcher().ClientCommand(env.ctx, 2, []string{"hello"})
		Expect(out.Handled).To(BeTrue())
		Expect(out.Result).To(Equal(wizard.Handled))
	})

	It("keeps banned addresses out before any plugin sees them", func() {
		out := manager.Dispatcher().ClientConnect(env.ctx, 3, "mallory", "10.1.2.3:27005")
		Expect(out.Accepted).To(BeFalse())
		Expect(out.Reason).To(Equal("You are banned from this server"))
		Expect(out.RejectedBy).To(Equal(manager.FindPluginByName(builtin.BanlistName)))
	})
})
