// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/wizard"
)

var _ = Describe("Plugin lifecycle", func() {
	var (
		ctx context.Context
		j   *journal
		m   *plugin.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		j = &journal{}
		m = plugin.NewManager("", plugin.WithLogger(quietLogger()))
	})

	AfterEach(func() {
		Expect(m.Close(ctx)).To(Succeed())
	})

	Describe("initial batch", func() {
		It("starts every plugin before any receives OnAllLoaded", func() {
			_, err := m.LoadAll(ctx,
				fakeModule(newFake("core", j)),
				fakeModule(newFake("admin", j), "core"),
				fakeModule(newFake("votes", j), "core"))
			Expect(err).NotTo(HaveOccurred())

			Expect(j.entries).To(Equal([]string{
				"core:OnLoad", "core:OnStart",
				"admin:OnLoad", "admin:OnStart",
				"votes:OnLoad", "votes:OnStart",
				"core:OnAllLoaded", "admin:OnAllLoaded", "votes:OnAllLoaded",
			}))
		})

		It("keeps loading independent plugins when one fails", func() {
			bad := newFake("bad", j)
			bad.startErr = errors.New("port in use")

			report, err := m.LoadAll(ctx,
				fakeModule(bad),
				fakeModule(newFake("needsBad", j), "bad"),
				fakeModule(newFake("solo", j)))
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Loaded).To(Equal([]string{"solo"}))
			Expect(report.Failures).To(HaveLen(2))
			Expect(report.Text()).To(ContainSubstring("[DEPENDENCY_FAILED]"))
			Expect(j.only("OnAllLoaded")).To(Equal([]string{"solo"}))
		})
	})

	Describe("teardown pairing", func() {
		It("calls OnEnd and OnUnload exactly once for every plugin whose OnLoad succeeded", func() {
			failing := newFake("failing", j)
			failing.startErr = errors.New("nope")
			rejected := newFake("rejected", j)
			rejected.loadErr = errors.New("nope")

			_, err := m.LoadAll(ctx, fakeModule(newFake("ok", j)), fakeModule(failing), fakeModule(rejected))
			Expect(err).NotTo(HaveOccurred())
			m.UnloadAll(ctx)

			Expect(j.count("ok:OnEnd")).To(Equal(1))
			Expect(j.count("ok:OnUnload")).To(Equal(1))
			Expect(j.count("failing:OnEnd")).To(Equal(1))
			Expect(j.count("failing:OnUnload")).To(Equal(1))
			Expect(j.count("rejected:OnEnd")).To(BeZero())
			Expect(j.count("rejected:OnUnload")).To(BeZero())
		})
	})

	Describe("late loading", func() {
		BeforeEach(func() {
			_, err := m.LoadAll(ctx, fakeModule(newFake("core", j)))
			Expect(err).NotTo(HaveOccurred())
		})

		It("delivers OnAllLoaded right after OnStart", func() {
			m.Load(ctx, fakeModule(newFake("late", j), "core"))
			Expect(j.entries[len(j.entries)-3:]).To(Equal([]string{"late:OnLoad", "late:OnStart", "late:OnAllLoaded"}))
		})

		It("includes the late plugin in dispatch after earlier plugins", func() {
			m.Load(ctx, fakeModule(newFake("late", j)))
			m.Dispatcher().LevelStart(ctx)
			Expect(j.only("level_start")).To(Equal([]string{"core", "late"}))
		})

		It("reloads a plugin under a fresh id after unload", func() {
			first := m.FindPluginByName("core")
			Expect(m.Unload(ctx, first)).To(Succeed())
			report := m.Load(ctx, fakeModule(newFake("core", j)))
			Expect(report.OK()).To(BeTrue())
			Expect(m.FindPluginByName("core")).NotTo(Equal(first))
			Expect(j.count("core:OnAllLoaded")).To(Equal(2))
		})
	})

	Describe("pausing", func() {
		var id wizard.PluginID

		BeforeEach(func() {
			_, err := m.LoadAll(ctx, fakeModule(newFake("timer", j)))
			Expect(err).NotTo(HaveOccurred())
			id = m.FindPluginByName("timer")
		})

		It("stops hook delivery until unpaused", func() {
			Expect(m.Pause(ctx, id)).To(Succeed())
			m.Dispatcher().LevelShutdown(ctx)
			Expect(j.only("level_shutdown")).To(BeEmpty())

			Expect(m.Unpause(ctx, id)).To(Succeed())
			m.Dispatcher().LevelShutdown(ctx)
			Expect(j.only("level_shutdown")).To(Equal([]string{"timer"}))
		})

		It("reports the paused state in the status snapshot", func() {
			Expect(m.Pause(ctx, id)).To(Succeed())
			Expect(m.Status().Plugins).To(ContainElement(HaveField("State", plugin.StatePaused)))
		})
	})
})
