package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/hass-onboard/internal/authflow"
	"github.com/stacklok/hass-onboard/internal/hass"
	"github.com/stacklok/hass-onboard/test-integration/onboarding/helpers"
)

var _ = Describe("Authorization Round-Trip", Label("authorization"), func() {
	var (
		fake   *helpers.FakeHomeAssistant
		client *hass.Client
	)

	AfterEach(func() {
		fake.Close()
	})

	authorize := func(browser authflow.Browser) (*hass.Client, hass.AuthorizationRequest, *authflow.Interceptor) {
		var err error
		client, err = hass.NewClient(fake.URL)
		Expect(err).NotTo(HaveOccurred())

		areq, err := client.NewAuthorizationRequest()
		Expect(err).NotTo(HaveOccurred())

		interceptor, err := authflow.NewInterceptor(authflow.Request{URL: areq.URL}, browser)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(interceptor.Close)

		Expect(interceptor.Start(ctx)).To(Succeed())
		return client, areq, interceptor
	}

	Context("With the headless surface", func() {
		BeforeEach(func() {
			fake = helpers.NewFakeHomeAssistantBuilder().WithRedirectApproval("redirect-code").Build()
		})

		It("should capture the callback and exchange the code", func() {
			client, areq, interceptor := authorize(authflow.NewNavigator())

			callback, err := interceptor.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(callback.Scheme).To(Equal("homeassistant"))
			Expect(interceptor.State()).To(Equal(authflow.StateResolved))

			code, err := hass.ParseCallback(callback, areq.State)
			Expect(err).NotTo(HaveOccurred())

			token, err := client.Exchange(ctx, code)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.AccessToken).To(Equal("access-redirect-code"))
			Expect(fake.Exchanged()).To(ConsistOf("redirect-code"))
		})

		It("should refuse to exchange the same code twice", func() {
			client, areq, interceptor := authorize(authflow.NewNavigator())

			callback, err := interceptor.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			code, err := hass.ParseCallback(callback, areq.State)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Exchange(ctx, code)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Exchange(ctx, code)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("With the browser surface", func() {
		BeforeEach(func() {
			fake = helpers.NewFakeHomeAssistantBuilder().WithLoginFlow("owner", "secret", "flow-code").Build()
		})

		It("should capture the completed login flow", func() {
			opened := make(chan string, 1)
			surface := authflow.NewProxySurface(authflow.WithOpener(func(u string) error {
				opened <- u
				return nil
			}))
			client, areq, interceptor := authorize(surface)

			var local string
			Eventually(opened, 5*time.Second).Should(Receive(&local))

			By("loading the sign-in page through the proxy")
			resp, err := http.Get(local)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(interceptor.Outcome().Settled()).To(BeFalse())

			By("submitting wrong credentials")
			Expect(submitLogin(local, "owner", "wrong")).To(HaveKeyWithValue("type", "form"))
			Expect(interceptor.Outcome().Settled()).To(BeFalse())

			By("submitting the right credentials")
			Expect(submitLogin(local, "owner", "secret")).To(HaveKeyWithValue("type", "create_entry"))

			callback, err := interceptor.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			code, err := hass.ParseCallback(callback, areq.State)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal("flow-code"))

			token, err := client.Exchange(ctx, code)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.RefreshToken).To(Equal("refresh-flow-code"))
		})

		It("should reject with ErrCancelled when the user gives up", func() {
			surface := authflow.NewProxySurface(authflow.WithOpener(func(string) error { return nil }))
			_, _, interceptor := authorize(surface)

			Expect(interceptor.Cancel()).To(BeTrue())
			_, err := interceptor.Wait(ctx)
			Expect(errors.Is(err, authflow.ErrCancelled)).To(BeTrue())
			Expect(interceptor.State()).To(Equal(authflow.StateRejected))
		})
	})
})

// submitLogin posts credentials to the login flow through the proxy at local
func submitLogin(local, username, password string) map[string]any {
	u, err := url.Parse(local)
	Expect(err).NotTo(HaveOccurred())
	u.Path = "/auth/login_flow/flow-1"
	u.RawQuery = ""

	body, err := json.Marshal(map[string]string{
		"username":  username,
		"password":  password,
		"client_id": hass.DefaultClientID,
	})
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(u.String(), "application/json", bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var step map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&step)).To(Succeed())
	return step
}
