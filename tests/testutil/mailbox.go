package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
)

// FakeMailbox is an in-memory mailbox.Client. Accounts, tokens and
// messages live in maps; every call is counted by operation name.
type FakeMailbox struct {
	mu sync.Mutex

	domains  []model.Domain
	accounts map[string]*fakeAccount // by address
	tokens   map[string]string       // token -> address
	messages map[string][]model.Message
	sources  map[string][]byte
	failures map[string]error
	calls    map[string]int
	nextID   int

	// ListHook, when set, runs at the start of every ListMessages call
	// without the lock held.
	ListHook func(token string)
}

type fakeAccount struct {
	acct     model.Account
	password string
}

var _ mailbox.Client = (*FakeMailbox)(nil)

// NewFakeMailbox returns a fake offering the given domains as active and
// public.
func NewFakeMailbox(domains ...string) *FakeMailbox {
	f := &FakeMailbox{
		accounts: make(map[string]*fakeAccount),
		tokens:   make(map[string]string),
		messages: make(map[string][]model.Message),
		sources:  make(map[string][]byte),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
	for i, d := range domains {
		f.domains = append(f.domains, model.Domain{ID: fmt.Sprintf("d%d", i+1), Domain: d, IsActive: true})
	}
	return f
}

// SetDomains replaces the offered domains.
func (f *FakeMailbox) SetDomains(domains []model.Domain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains = domains
}

// AddAccount seeds an account and returns it.
func (f *FakeMailbox) AddAccount(address, password string) model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addAccountLocked(address, password)
}

// IssueToken returns a fresh valid token for address.
func (f *FakeMailbox) IssueToken(address string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueTokenLocked(address)
}

// RevokeTokens invalidates every token issued for address.
func (f *FakeMailbox) RevokeTokens(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, addr := range f.tokens {
		if addr == address {
			delete(f.tokens, tok)
		}
	}
}

// AddMessage delivers m to the account.
func (f *FakeMailbox) AddMessage(accountID string, m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.AccountID = accountID
	f.messages[accountID] = append(f.messages[accountID], m)
}

// SetSource stores raw message source for GetSource.
func (f *FakeMailbox) SetSource(id string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[id] = raw
}

// Fail makes every call of op return err until cleared with a nil err.
func (f *FakeMailbox) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how often op was called.
func (f *FakeMailbox) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (f *FakeMailbox) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Message returns the server-side copy of a message.
func (f *FakeMailbox) Message(accountID, id string) (model.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[accountID] {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// HasAccount reports whether address still exists.
func (f *FakeMailbox) HasAccount(address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[address]
	return ok
}

// ListDomains implements mailbox.Client.
func (f *FakeMailbox) ListDomains(ctx context.Context) ([]model.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListDomains"); err != nil {
		return nil, err
	}
	return slices.Clone(f.domains), nil
}

// CreateAccount implements mailbox.Client.
func (f *FakeMailbox) CreateAccount(ctx context.Context, address, password string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateAccount"); err != nil {
		return nil, err
	}
	if _, ok := f.accounts[address]; ok {
		return nil, &mailbox.AccountCreationError{
			Address: address,
			Taken:   true,
			Err:     errors.New("address: This value is already used."),
		}
	}
	acct := f.addAccountLocked(address, password)
	return &acct, nil
}

// Token implements mailbox.Client.
func (f *FakeMailbox) Token(ctx context.Context, address, password string) (*mailbox.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Token"); err != nil {
		return nil, err
	}
	fa, ok := f.accounts[address]
	if !ok || fa.password != password {
		return nil, &mailbox.AuthenticationError{Address: address, Message: "Invalid credentials."}
	}
	return &mailbox.TokenResult{AccountID: fa.acct.ID, Token: f.issueTokenLocked(address)}, nil
}

// Me implements mailbox.Client.
func (f *FakeMailbox) Me(ctx context.Context, token string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("Me"); err != nil {
		return nil, err
	}
	fa, err := f.resolve(token, "GET /me")
	if err != nil {
		return nil, err
	}
	acct := fa.acct
	acct.Token = token
	return &acct, nil
}

// ListMessages implements mailbox.Client.
func (f *FakeMailbox) ListMessages(ctx context.Context, token string, page int) ([]model.Message, error) {
	if hook := f.listHook(); hook != nil {
		hook(token)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListMessages"); err != nil {
		return nil, err
	}
	fa, err := f.resolve(token, "GET /messages")
	if err != nil {
		return nil, err
	}
	if page > 1 {
		return nil, nil
	}

	out := make([]model.Message, 0, len(f.messages[fa.acct.ID]))
	for _, m := range f.messages[fa.acct.ID] {
		m.Text, m.HTML, m.Attachments = "", "", nil
		out = append(out, m)
	}
	return out, nil
}

// GetMessage implements mailbox.Client.
func (f *FakeMailbox) GetMessage(ctx context.Context, token, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetMessage"); err != nil {
		return nil, err
	}
	fa, err := f.resolve(token, "GET /messages/"+id)
	if err != nil {
		return nil, err
	}
	for _, m := range f.messages[fa.acct.ID] {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, &mailbox.APIError{Op: "GET /messages/" + id, Status: 404, Description: "Not Found"}
}

// GetSource implements mailbox.Client.
func (f *FakeMailbox) GetSource(ctx context.Context, token, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetSource"); err != nil {
		return nil, err
	}
	if _, err := f.resolve(token, "GET /messages/"+id+"/download"); err != nil {
		return nil, err
	}
	raw, ok := f.sources[id]
	if !ok {
		return nil, &mailbox.APIError{Op: "GET /messages/" + id + "/download", Status: 404, Description: "Not Found"}
	}
	return raw, nil
}

// MarkSeen implements mailbox.Client.
func (f *FakeMailbox) MarkSeen(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("MarkSeen"); err != nil {
		return err
	}
	fa, err := f.resolve(token, "PATCH /messages/"+id)
	if err != nil {
		return err
	}
	msgs := f.messages[fa.acct.ID]
	for i := range msgs {
		if msgs[i].ID == id {
			msgs[i].Seen = true
			return nil
		}
	}
	return &mailbox.APIError{Op: "PATCH /messages/" + id, Status: 404, Description: "Not Found"}
}

// DeleteAccount implements mailbox.Client.
func (f *FakeMailbox) DeleteAccount(ctx context.Context, token, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteAccount"); err != nil {
		return err
	}
	fa, err := f.resolve(token, "DELETE /accounts/"+accountID)
	if err != nil {
		return err
	}
	if fa.acct.ID != accountID {
		return &mailbox.APIError{Op: "DELETE /accounts/" + accountID, Status: 403, Description: "Access Denied."}
	}
	address := fa.acct.Address
	delete(f.accounts, address)
	delete(f.messages, accountID)
	for tok, addr := range f.tokens {
		if addr == address {
			delete(f.tokens, tok)
		}
	}
	return nil
}

func (f *FakeMailbox) listHook() func(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListHook
}

// begin counts the call and returns any injected failure. Callers hold f.mu.
func (f *FakeMailbox) begin(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func (f *FakeMailbox) resolve(token, op string) (*fakeAccount, error) {
	address, ok := f.tokens[token]
	if !ok {
		return nil, &mailbox.CredentialError{Op: op}
	}
	fa, ok := f.accounts[address]
	if !ok {
		return nil, &mailbox.CredentialError{Op: op}
	}
	return fa, nil
}

func (f *FakeMailbox) addAccountLocked(address, password string) model.Account {
	f.nextID++
	now := time.Now().UTC().Truncate(time.Second)
	acct := model.Account{
		ID:        fmt.Sprintf("acc%d", f.nextID),
		Address:   address,
		Password:  password,
		Quota:     40000000,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.accounts[address] = &fakeAccount{acct: acct, password: password}
	return acct
}

func (f *FakeMailbox) issueTokenLocked(address string) string {
	f.nextID++
	tok := fmt.Sprintf("tok%d", f.nextID)
	f.tokens[tok] = address
	return tok
}
