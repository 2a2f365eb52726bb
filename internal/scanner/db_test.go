package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderEntity = `package com.shop.domain;

import jakarta.persistence.*;
import java.util.List;

@Entity
@Table(name = "orders")
public class Order {
    @Id
    @GeneratedValue
    private Long id;

    @Column(name = "order_status")
    private String status;

    @OneToMany(mappedBy = "order")
    private List<OrderLine> lines;

    @ManyToOne
    @JoinColumn(name = "customer_id")
    private Customer customer;

    @Transient
    private String cached;
}
`

const orderRepository = `package com.shop.repo;

import org.springframework.data.jpa.repository.*;
import com.shop.domain.Order;

public interface OrderRepository extends JpaRepository<Order, Long> {
    List<Order> findByStatus(String status);

    long countByStatus(String status);

    void deleteByStatus(String status);

    @Modifying
    @Query("update Order o set o.status = :status where o.id = :id")
    int markStatus(Long id, String status);

    @Query(value = "select * from orders where customer_id = ?1", nativeQuery = true)
    List<Order> forCustomer(Long customerId);
}
`

func TestScanner_Scan_PersistenceMappings(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main/java/com/shop/domain/Order.java":         orderEntity,
		"src/main/java/com/shop/domain/Audit.java":         "package com.shop.domain;\n@Entity\npublic class Audit {\n    @EmbeddedId\n    private AuditKey key;\n}\n",
		"src/main/java/com/shop/repo/OrderRepository.java": orderRepository,
		"src/test/java/com/shop/repo/TestRepository.java":  "package com.shop.repo;\npublic interface TestRepository extends CrudRepository<Order, Long> {}\n",
	})

	result, err := newTestScanner(t).Scan(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, result.DB)
	require.Len(t, result.DB.Entities, 2)

	audit := result.DB.Entities[0]
	assert.Equal(t, "com.shop.domain.Audit", audit.FQN)
	assert.Equal(t, "Audit", audit.TableName)
	assert.Equal(t, []string{"key"}, audit.PrimaryKeys)

	order := result.DB.Entities[1]
	assert.Equal(t, "orders", order.TableName)
	assert.Equal(t, []string{"id"}, order.PrimaryKeys)
	require.Len(t, order.Fields, 4)
	assert.Equal(t, EntityField{Name: "status", Type: "String", ColumnName: "order_status"}, order.Fields[1])
	assert.Equal(t, "customer_id", order.Fields[3].ColumnName)
	assert.Equal(t, []EntityRelationship{
		{FieldName: "lines", TargetType: "OrderLine", RelationshipType: "ONE_TO_MANY"},
		{FieldName: "customer", TargetType: "Customer", RelationshipType: "MANY_TO_ONE"},
	}, order.Relationships)

	assert.Equal(t, []string{"com.shop.repo.OrderRepository"}, result.DB.ClassesByEntity["Order"])
	assert.Equal(t, []string{}, result.DB.ClassesByEntity["Audit"])

	ops := result.DB.OperationsByClass["com.shop.repo.OrderRepository"]
	require.Len(t, ops, 5)
	byName := map[string]DaoOperation{}
	for _, op := range ops {
		byName[op.MethodName] = op
		assert.Equal(t, "orders", op.Target)
	}
	assert.Equal(t, OpSelect, byName["findByStatus"].OperationType)
	assert.Equal(t, OpSelect, byName["countByStatus"].OperationType)
	assert.Equal(t, OpDelete, byName["deleteByStatus"].OperationType)
	assert.Equal(t, OpUpdate, byName["markStatus"].OperationType)
	assert.Equal(t, OpSelect, byName["forCustomer"].OperationType)
	assert.Equal(t, "select * from orders where customer_id = ?1", byName["forCustomer"].QuerySnippet)
	assert.NotContains(t, result.DB.OperationsByClass, "com.shop.repo.TestRepository")
}

func TestTypeArguments(t *testing.T) {
	assert.Equal(t, []string{"Order", "Long"}, typeArguments("JpaRepository<Order, Long>"))
	assert.Equal(t, []string{"String", "List<Long>"}, typeArguments("Map<String, List<Long>>"))
	assert.Nil(t, typeArguments("Order"))
}

func TestQueryOperation(t *testing.T) {
	tests := map[string]string{
		"select o from Order o":     OpSelect,
		"  UPDATE orders set x = 1": OpUpdate,
		"delete from Order o":       OpDelete,
		"insert into orders values": OpInsertOrUpdate,
		"call cleanup()":            OpUnknown,
		"":                          OpUnknown,
	}
	for query, want := range tests {
		assert.Equal(t, want, queryOperation(query), query)
	}
}

func TestQuerySnippet_Bounded(t *testing.T) {
	q := "select o from Order o where " + strings.Repeat("o.x = 1 and ", 40)
	got := querySnippet(q)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, maxQuerySnippet+3)
}

func TestScanner_Scan_GherkinFeatures(t *testing.T) {
	feature := `# checkout flows
Feature: Checkout
  Background:
    Given a signed in customer

  Scenario: Pay by card
    When the customer pays with a card
    Then the order is confirmed

  Scenario Outline: Pay by <method>
    When the customer pays with <method>
    Examples:
      | method |
      | iban   |
`
	root := writeTree(t, map[string]string{
		"src/test/resources/features/checkout.feature": feature,
		"src/test/resources/features/empty.feature":    "# nothing here\n",
		"src/test/resources/features/steps.feature":    "Given a cart\nThen it is empty\n",
	})

	result, err := newTestScanner(t).Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Features, 2)

	checkout := result.Features[0]
	assert.Equal(t, "src/test/resources/features/checkout.feature", checkout.Path)
	assert.Equal(t, "Checkout", checkout.Title)
	require.Len(t, checkout.Scenarios, 3)
	assert.Equal(t, ScenarioRecord{Name: "Background", Type: ScenarioBackground, Steps: []string{"Given a signed in customer"}}, checkout.Scenarios[0])
	assert.Equal(t, "Pay by card", checkout.Scenarios[1].Name)
	assert.Len(t, checkout.Scenarios[1].Steps, 2)
	outline := checkout.Scenarios[2]
	assert.Equal(t, ScenarioOutline, outline.Type)
	assert.Equal(t, []string{"When the customer pays with <method>", "Examples:", "| method |", "| iban   |"}, outline.Steps)

	steps := result.Features[1]
	assert.Equal(t, "steps", steps.Title)
	require.Len(t, steps.Scenarios, 1)
	assert.Equal(t, "Scenario", steps.Scenarios[0].Name)
}

func TestScanner_Scan_ImageAssets(t *testing.T) {
	root := writeTree(t, map[string]string{
		"docs/logo.png":                      "abc",
		"src/main/resources/static/icon.SVG": "<svg/>",
		"target/classes/static/icon.svg":     "<svg/>",
		"node_modules/pkg/img.png":           "x",
		"src/main/java/com/acme/App.java":    "package com.acme;\npublic class App {}\n",
	})

	result, err := newTestScanner(t).Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Assets, 2)

	logo := result.Assets[0]
	assert.Equal(t, "logo.png", logo.FileName)
	assert.Equal(t, "docs/logo.png", logo.RelativePath)
	assert.Equal(t, int64(3), logo.SizeBytes)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", logo.SHA256)
	assert.Equal(t, "src/main/resources/static/icon.SVG", result.Assets[1].RelativePath)
}

func TestBoundedText(t *testing.T) {
	assert.Equal(t, "abc", boundedText([]byte("abc"), 10))
	assert.Equal(t, "ab", boundedText([]byte("abc"), 2))
	// never splits a multi-byte rune
	assert.Equal(t, "a", boundedText([]byte("aé"), 2))
}
