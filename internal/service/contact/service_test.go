package contact_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/service/contact"
)

const testOrg = "org-1"

type fakeObjects map[string][]byte

func (f fakeObjects) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestUpsertNormalizesAndDedupes(t *testing.T) {
	svc := contact.NewService(memory.NewContactRepo(), nil)
	ctx := context.Background()

	a, err := svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: " Ana@Example.COM ", Name: "Ana", Tags: []string{"A", " A ", ""}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if a.Email != "ana@example.com" || a.Status != domain.ContactActive {
		t.Fatalf("unexpected contact: %+v", a)
	}
	if len(a.Tags) != 1 {
		t.Fatalf("expected tags deduped, got %v", a.Tags)
	}

	b, err := svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "ana@example.com", Name: "Ana Maria"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if b.ID != a.ID {
		t.Fatalf("expected same id on upsert, got %s and %s", a.ID, b.ID)
	}

	if _, err := svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "not-an-email"}); !errors.Is(err, contact.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestResolveAudience(t *testing.T) {
	svc := contact.NewService(memory.NewContactRepo(), nil)
	ctx := context.Background()
	svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "1@x.com", Tags: []string{"A"}})
	svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "2@x.com", Tags: []string{"B"}})
	svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "3@x.com", Tags: []string{"A", "B"}})
	svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "4@x.com"})
	svc.Upsert(ctx, testOrg, contact.UpsertInput{Email: "5@x.com", Tags: []string{"A"}, Status: domain.ContactInactive})

	got, err := svc.Resolve(ctx, testOrg, &domain.Campaign{AudienceType: domain.AudienceTags, Tags: []string{"A"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0].Email != "1@x.com" || got[1].Email != "3@x.com" {
		t.Fatalf("unexpected audience: %+v", got)
	}

	all, _ := svc.Resolve(ctx, testOrg, &domain.Campaign{AudienceType: domain.AudienceAll})
	if len(all) != 4 {
		t.Fatalf("expected 4 active contacts, got %d", len(all))
	}
}

func TestImportCSV(t *testing.T) {
	repo := memory.NewContactRepo()
	svc := contact.NewService(repo, nil)
	ctx := context.Background()

	csv := "Email,Name,Company,Cargo,Tags\n" +
		"ana@x.com,Ana Silva,Acme,Engineer,A;B\n" +
		"broken,Bob,,,\n" +
		"ANA@x.com,Ana S.,Acme,Lead,A\n" +
		"carl@x.com,Carl,,,\n"

	res, err := svc.ImportCSV(ctx, testOrg, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Created != 2 || res.Updated != 1 {
		t.Fatalf("created=%d updated=%d", res.Created, res.Updated)
	}
	if len(res.Invalid) != 1 || res.Invalid[0].Line != 3 {
		t.Fatalf("unexpected invalid rows: %+v", res.Invalid)
	}

	list, _, _ := svc.List(ctx, testOrg, contact.ListFilter{})
	if len(list) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(list))
	}
	if list[0].Role != "Lead" || len(list[0].Tags) != 1 {
		t.Fatalf("expected updated row to win: %+v", list[0])
	}
}

func TestImportCSVRequiresEmailColumn(t *testing.T) {
	svc := contact.NewService(memory.NewContactRepo(), nil)
	_, err := svc.ImportCSV(context.Background(), testOrg, strings.NewReader("name\nAna\n"))
	if !errors.Is(err, contact.ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
}

func TestImportFromS3(t *testing.T) {
	objects := fakeObjects{"imports/list.csv": []byte("email,tags\nz@x.com,news\n")}
	svc := contact.NewService(memory.NewContactRepo(), objects)

	res, err := svc.ImportFromS3(context.Background(), testOrg, "imports/list.csv")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("expected 1 created, got %d", res.Created)
	}
	if _, err := svc.ImportFromS3(context.Background(), testOrg, "missing.csv"); err == nil {
		t.Fatal("expected error for missing key")
	}

	noStore := contact.NewService(memory.NewContactRepo(), nil)
	if _, err := noStore.ImportFromS3(context.Background(), testOrg, "x"); err == nil {
		t.Fatal("expected error without object store")
	}
}
